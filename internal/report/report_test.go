package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/types"
)

func open(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteMeeting(t *testing.T) {
	m := types.Meeting{
		ID:           7,
		Filename:     "standup.wav",
		Status:       types.StatusCompleted,
		Summary:      "Discussed the release.",
		Participants: []string{"Ana", "Ben"},
		ActionItems:  []types.ActionItem{{Task: "Ship it", AssignedTo: "Ana"}},
		Decisions:    []string{"Release Friday", "Freeze Thursday"},
		Keywords:     []types.Keyword{{Keyword: "release", Count: 4}},
		Sentiment:    types.SentimentPositive,
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	var buf bytes.Buffer
	if err := WriteMeeting(&buf, m); err != nil {
		t.Fatalf("WriteMeeting: %v", err)
	}
	f := open(t, &buf)

	want := []string{SheetSummary, SheetActionItems, SheetDecisions, SheetKeywords}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}

	if v, _ := f.GetCellValue(SheetSummary, "B7"); v != "Ana, Ben" {
		t.Errorf("participants cell = %q", v)
	}
	if v, _ := f.GetCellValue(SheetSummary, "B5"); v != "2025-01-02T03:04:05Z" {
		t.Errorf("created cell = %q", v)
	}
	rows, _ := f.GetRows(SheetActionItems)
	if len(rows) != 2 || rows[1][0] != "Ship it" || rows[1][1] != "Ana" {
		t.Errorf("action rows = %v", rows)
	}
	rows, _ = f.GetRows(SheetDecisions)
	if len(rows) != 3 || rows[2][1] != "Freeze Thursday" {
		t.Errorf("decision rows = %v", rows)
	}
	if v, _ := f.GetCellValue(SheetKeywords, "B2"); v != "4" {
		t.Errorf("keyword count = %q", v)
	}
}

func TestWriteMeetingEmptyInsights(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMeeting(&buf, types.Meeting{ID: 1, Status: types.StatusProcessing}); err != nil {
		t.Fatalf("WriteMeeting: %v", err)
	}
	f := open(t, &buf)
	rows, _ := f.GetRows(SheetActionItems)
	if len(rows) != 1 {
		t.Errorf("expected header only, got %v", rows)
	}
}

func TestWriteOverview(t *testing.T) {
	ov := aggregator.Overview{
		TotalMeetings:  3,
		StatusCounts:   map[types.Status]int{types.StatusCompleted: 2, types.StatusFailed: 1},
		TopKeywords:    []types.Keyword{{Keyword: "budget", Count: 9}},
		ActionsByOwner: map[string]int{"Ben": 1, "Ana": 3, "Cy": 1},
	}
	cards := actionable.Generate(ov)

	var buf bytes.Buffer
	if err := WriteOverview(&buf, ov, cards); err != nil {
		t.Fatalf("WriteOverview: %v", err)
	}
	f := open(t, &buf)

	if v, _ := f.GetCellValue(SheetOverview, "B2"); v != "3" {
		t.Errorf("total = %q", v)
	}
	rows, _ := f.GetRows(SheetOwners)
	if len(rows) != 4 || rows[1][0] != "Ana" || rows[2][0] != "Ben" || rows[3][0] != "Cy" {
		t.Errorf("owner rows = %v", rows)
	}
	rows, _ = f.GetRows(SheetRecommendations)
	if len(rows) != len(cards)+1 {
		t.Errorf("recommendation rows = %d, want %d", len(rows), len(cards)+1)
	}
}
