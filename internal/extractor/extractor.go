// Package extractor turns a meeting transcript into structured insights using
// a language model.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// Generator streams model output fragments for a prompt.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest, fn func(fragment string) error) error
}

type Extractor struct {
	llm Generator
	log *logger.Logger
}

func New(g Generator, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{llm: g, log: log.Component("extractor")}
}

// Extract never fails: any transport or parse problem yields
// types.FailedInsights().
func (e *Extractor) Extract(ctx context.Context, transcript string) types.InsightResult {
	start := time.Now()

	var buf strings.Builder
	err := e.llm.Generate(ctx, llm.GenerateRequest{
		Prompt: BuildPrompt(transcript),
		Format: "json",
		Stream: true,
	}, func(fragment string) error {
		buf.WriteString(fragment)
		return nil
	})
	if err != nil {
		e.log.WithError(err).Error("insight extraction request failed")
		return types.FailedInsights()
	}

	res, err := Parse(buf.String(), transcript)
	if err != nil {
		e.log.WithError(err).WithField("raw_len", buf.Len()).Error("insight extraction output unusable")
		return types.FailedInsights()
	}

	e.log.WithField("took", time.Since(start).String()).
		WithField("keywords", len(res.Keywords)).
		WithField("action_items", len(res.ActionItems)).
		Info("insights extracted")
	return res
}

// BuildPrompt asks for participants first and then insights tied to them,
// all in a single JSON object.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(`You are an expert meeting analysis assistant. Your task is to perform a two-step analysis of the
meeting transcript below and provide the output in a single, strict JSON format.

**Step 1: Identify Participants**
First, read the entire transcript and identify a definitive list of all unique participant names mentioned.

**Step 2: Extract Detailed Insights**
Using the full transcript AND the list of participants you identified in Step 1, extract the required information.
The final JSON object must have the following keys: "participants", "summary", "action_items", "decisions",
"keywords", and "sentiment".
- "participants": A list of all unique participant names identified in Step 1.
- "summary": A concise, neutral summary of the meeting's purpose and key discussion points.
- "action_items": A list of tasks. Each item must be an object with "task" and "assigned_to" keys. The "assigned_to"
  value MUST be a name from the "participants" list you created. If the assignee is unclear or not in the
  participant list, you MUST use the string "%s".
- "decisions": A list of key decisions made during the meeting.
- "keywords": A list of 5-7 single-word or two-word key topics.
- "sentiment": The overall meeting sentiment. Must be one of: "Positive", "Neutral", "Negative".
Do not include any preamble or explanation outside of the JSON object.

**Transcript:**
"""
%s
"""
`, types.Unassigned, transcript)
}
