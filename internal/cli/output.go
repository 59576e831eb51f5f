package cli

import (
	"fmt"
	"io"
	"strings"

	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/types"
)

type formatter struct {
	w io.Writer
}

func newFormatter(w io.Writer) *formatter {
	return &formatter{w: w}
}

func (f *formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *formatter) Processed(res pipeline.Result) {
	if res.Status == types.StatusCompleted {
		fmt.Fprintf(f.w, "✅ Meeting %d completed: %d segments, %d words in %dms\n", res.MeetingID, res.Segments, res.Words, res.DurationMs)
		return
	}
	fmt.Fprintf(f.w, "❌ Meeting %d %s after %dms\n", res.MeetingID, res.Status, res.DurationMs)
}

func (f *formatter) Meeting(m types.Meeting) {
	fmt.Fprintf(f.w, "\n📋 %s (#%d, %s)\n", m.Filename, m.ID, m.Status)
	if m.Summary != "" {
		fmt.Fprintf(f.w, "\nSummary:\n  %s\n", m.Summary)
	}
	if len(m.Participants) > 0 {
		fmt.Fprintf(f.w, "\nParticipants: %s\n", strings.Join(m.Participants, ", "))
	}
	if len(m.ActionItems) > 0 {
		fmt.Fprintf(f.w, "\nAction items:\n")
		for _, ai := range m.ActionItems {
			fmt.Fprintf(f.w, "  - %s (%s)\n", ai.Task, ai.AssignedTo)
		}
	}
	if len(m.Decisions) > 0 {
		fmt.Fprintf(f.w, "\nDecisions:\n")
		for _, d := range m.Decisions {
			fmt.Fprintf(f.w, "  - %s\n", d)
		}
	}
	if len(m.Keywords) > 0 {
		kws := make([]string, len(m.Keywords))
		for i, kw := range m.Keywords {
			kws[i] = fmt.Sprintf("%s (%d)", kw.Keyword, kw.Count)
		}
		fmt.Fprintf(f.w, "\nKeywords: %s\n", strings.Join(kws, ", "))
	}
	if m.Sentiment != "" {
		fmt.Fprintf(f.w, "Sentiment: %s\n", m.Sentiment)
	}
}

func (f *formatter) Answer(question, answer string) {
	fmt.Fprintf(f.w, "\n❓ %s\n💬 %s\n", question, strings.TrimSpace(answer))
}
