package types

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
	SentimentUnknown  Sentiment = "Unknown"
)

// ParseSentiment maps model output onto the enum; anything unrecognised is Unknown.
func ParseSentiment(s string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive
	case "neutral":
		return SentimentNeutral
	case "negative":
		return SentimentNegative
	default:
		return SentimentUnknown
	}
}

const Unassigned = "Unassigned"

type ActionItem struct {
	Task       string `json:"task"`
	AssignedTo string `json:"assigned_to"`
}

type Keyword struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type InsightResult struct {
	Participants []string     `json:"participants"`
	Summary      string       `json:"summary"`
	ActionItems  []ActionItem `json:"action_items"`
	Decisions    []string     `json:"decisions"`
	Keywords     []Keyword    `json:"keywords"`
	Sentiment    Sentiment    `json:"sentiment"`
}

const ExtractionFailedSummary = "Error extracting insights."

// FailedInsights is the well-formed result returned when extraction cannot complete.
func FailedInsights() InsightResult {
	return InsightResult{
		Participants: []string{},
		Summary:      ExtractionFailedSummary,
		ActionItems:  []ActionItem{},
		Decisions:    []string{},
		Keywords:     []Keyword{},
		Sentiment:    SentimentUnknown,
	}
}

// TranscriptChunk is a word-bounded slice of a transcript stored in the vector index.
type TranscriptChunk struct {
	ID        string    `json:"id"`
	MeetingID int64     `json:"meeting_id"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}
