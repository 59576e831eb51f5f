package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"meeting-insights-go/internal/types"
)

var (
	ErrNoJSON         = errors.New("no JSON object in model output")
	ErrMissingSummary = errors.New("model output has no summary")
)

// looseString accepts either a JSON string or an object carrying the text
// under a common key. Models drift between the two.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("expected string or object, got %s", b)
	}
	for _, k := range []string{"keyword", "name", "decision", "text", "value"} {
		if v, ok := obj[k].(string); ok {
			*s = looseString(v)
			return nil
		}
	}
	*s = ""
	return nil
}

type rawActionItem struct {
	Task       looseString `json:"task"`
	AssignedTo looseString `json:"assigned_to"`
}

type rawInsights struct {
	Participants []looseString   `json:"participants"`
	Summary      *string         `json:"summary"`
	ActionItems  []rawActionItem `json:"action_items"`
	Decisions    []looseString   `json:"decisions"`
	Keywords     []looseString   `json:"keywords"`
	Sentiment    looseString     `json:"sentiment"`
}

// Parse decodes accumulated model output and applies the post-processing
// rules: participant dedupe, assignee repair, keyword counting against
// transcript and sentiment normalisation.
func Parse(raw, transcript string) (types.InsightResult, error) {
	obj := extractJSON(raw)
	if obj == "" {
		return types.InsightResult{}, ErrNoJSON
	}
	var in rawInsights
	if err := json.Unmarshal([]byte(obj), &in); err != nil {
		return types.InsightResult{}, fmt.Errorf("decode insights: %w", err)
	}
	if in.Summary == nil {
		return types.InsightResult{}, ErrMissingSummary
	}

	participants := dedupe(strs(in.Participants))

	items := make([]types.ActionItem, 0, len(in.ActionItems))
	for _, ai := range in.ActionItems {
		task := strings.TrimSpace(string(ai.Task))
		if task == "" {
			continue
		}
		items = append(items, types.ActionItem{
			Task:       task,
			AssignedTo: repairAssignee(string(ai.AssignedTo), participants),
		})
	}

	return types.InsightResult{
		Participants: participants,
		Summary:      strings.TrimSpace(*in.Summary),
		ActionItems:  items,
		Decisions:    strs(in.Decisions),
		Keywords:     CountKeywords(strs(in.Keywords), transcript),
		Sentiment:    types.ParseSentiment(string(in.Sentiment)),
	}, nil
}

func strs(in []looseString) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(string(s)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// dedupe keeps the first spelling of each case-insensitive duplicate.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func repairAssignee(name string, participants []string) string {
	name = strings.TrimSpace(name)
	for _, p := range participants {
		if strings.EqualFold(p, name) {
			return p
		}
	}
	return types.Unassigned
}

// extractJSON finds the first balanced JSON object in s after removing
// markdown fences. Braces inside string literals are skipped.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}
