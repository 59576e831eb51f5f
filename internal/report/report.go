package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/types"
)

const (
	SheetSummary         = "Summary"
	SheetActionItems     = "Action Items"
	SheetDecisions       = "Decisions"
	SheetKeywords        = "Keywords"
	SheetOverview        = "Overview"
	SheetOwners          = "Owners"
	SheetRecommendations = "Recommendations"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteMeeting renders one meeting's insights as an xlsx workbook.
func WriteMeeting(w io.Writer, m types.Meeting) error {
	b, err := newBook()
	if err != nil {
		return err
	}
	defer b.f.Close()

	created := ""
	if !m.CreatedAt.IsZero() {
		created = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	b.table(SheetSummary, []string{"Field", "Value"}, [][]interface{}{
		{"ID", m.ID},
		{"Filename", m.Filename},
		{"Status", string(m.Status)},
		{"Created", created},
		{"Sentiment", string(m.Sentiment)},
		{"Participants", strings.Join(m.Participants, ", ")},
		{"Summary", m.Summary},
	})

	var rows [][]interface{}
	for _, ai := range m.ActionItems {
		rows = append(rows, []interface{}{ai.Task, ai.AssignedTo})
	}
	b.table(SheetActionItems, []string{"Task", "Assigned To"}, rows)

	rows = rows[:0]
	for i, d := range m.Decisions {
		rows = append(rows, []interface{}{i + 1, d})
	}
	b.table(SheetDecisions, []string{"#", "Decision"}, rows)

	rows = rows[:0]
	for _, kw := range m.Keywords {
		rows = append(rows, []interface{}{kw.Keyword, kw.Count})
	}
	b.table(SheetKeywords, []string{"Keyword", "Count"}, rows)

	return b.write(w)
}

// WriteOverview renders the cross-meeting overview and its recommendations.
func WriteOverview(w io.Writer, ov aggregator.Overview, cards []actionable.ActionCard) error {
	b, err := newBook()
	if err != nil {
		return err
	}
	defer b.f.Close()

	rows := [][]interface{}{{"Total meetings", ov.TotalMeetings}}
	for _, s := range []types.Status{types.StatusProcessing, types.StatusTranscribing, types.StatusAnalyzing, types.StatusCompleted, types.StatusFailed} {
		rows = append(rows, []interface{}{"Status: " + string(s), ov.StatusCounts[s]})
	}
	for _, s := range []types.Sentiment{types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative, types.SentimentUnknown} {
		rows = append(rows, []interface{}{"Sentiment: " + string(s), ov.SentimentCounts[s]})
	}
	rows = append(rows,
		[]interface{}{"Failure rate", ov.FailureRate},
		[]interface{}{"Unassigned action rate", ov.UnassignedRate},
		[]interface{}{"Extraction errors", ov.ExtractionErrors},
	)
	b.table(SheetOverview, []string{"Metric", "Value"}, rows)

	var kwRows [][]interface{}
	for _, kw := range ov.TopKeywords {
		kwRows = append(kwRows, []interface{}{kw.Keyword, kw.Count})
	}
	b.table(SheetKeywords, []string{"Keyword", "Count"}, kwRows)

	owners := make([]string, 0, len(ov.ActionsByOwner))
	for o := range ov.ActionsByOwner {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool {
		ci, cj := ov.ActionsByOwner[owners[i]], ov.ActionsByOwner[owners[j]]
		if ci != cj {
			return ci > cj
		}
		return owners[i] < owners[j]
	})
	var ownerRows [][]interface{}
	for _, o := range owners {
		ownerRows = append(ownerRows, []interface{}{o, ov.ActionsByOwner[o]})
	}
	b.table(SheetOwners, []string{"Owner", "Action Items"}, ownerRows)

	var cardRows [][]interface{}
	for _, c := range cards {
		cardRows = append(cardRows, []interface{}{c.Insight, c.Action, c.Impact})
	}
	b.table(SheetRecommendations, []string{"Insight", "Action", "Impact"}, cardRows)

	return b.write(w)
}

type book struct {
	f      *excelize.File
	header int
	sheets int
	err    error
}

func newBook() (*book, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	return &book{f: f, header: style}, nil
}

// table writes a header row and data rows to a new sheet. The first call
// renames the default sheet. Errors are kept and reported by write.
func (b *book) table(sheet string, header []string, rows [][]interface{}) {
	if b.err != nil {
		return
	}
	if b.sheets == 0 {
		b.err = b.f.SetSheetName(b.f.GetSheetName(0), sheet)
	} else {
		_, b.err = b.f.NewSheet(sheet)
	}
	b.sheets++
	if b.err != nil {
		b.err = fmt.Errorf("sheet %s: %w", sheet, b.err)
		return
	}

	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := b.f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		b.err = fmt.Errorf("sheet %s header: %w", sheet, err)
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := b.f.SetCellStyle(sheet, "A1", last, b.header); err != nil {
		b.err = fmt.Errorf("sheet %s style: %w", sheet, err)
		return
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := b.f.SetSheetRow(sheet, cell, &row); err != nil {
			b.err = fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
			return
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = b.f.SetColWidth(sheet, "A", lastCol, 24)
}

func (b *book) write(w io.Writer) error {
	if b.err != nil {
		return b.err
	}
	if _, err := b.f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
