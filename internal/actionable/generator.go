package actionable

import (
	"fmt"

	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	failureThreshold    = 0.25
	unassignedThreshold = 0.35
	negativeThreshold   = 0.5
)

// Generate turns an overview into follow-up suggestions, most pressing first.
// It always returns at least one card.
func Generate(ov aggregator.Overview) []ActionCard {
	var cards []ActionCard

	if ov.FailureRate >= failureThreshold {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%.0f%% of processed meetings failed", ov.FailureRate*100),
			Action:  "Check the transcription backend and the formats being uploaded",
			Impact:  "Fewer meetings without transcripts",
		})
	}
	if ov.ExtractionErrors > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d completed meetings have no extracted insights", ov.ExtractionErrors),
			Action:  "Review the language model output for these meetings and re-run extraction",
			Impact:  "Summaries and action items available for every meeting",
		})
	}
	if ov.UnassignedRate >= unassignedThreshold {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%.0f%% of action items have no owner", ov.UnassignedRate*100),
			Action:  "Close meetings by naming an owner for every task",
			Impact:  "Follow-ups do not get lost",
		})
	}
	if rated := ratedMeetings(ov); rated > 0 {
		neg := float64(ov.SentimentCounts[types.SentimentNegative]) / float64(rated)
		if neg >= negativeThreshold {
			cards = append(cards, ActionCard{
				Insight: fmt.Sprintf("%.0f%% of meetings had a negative tone", neg*100),
				Action:  "Look at recurring topics in negative meetings and address them directly",
				Impact:  "Healthier team discussions",
			})
		}
	}

	if len(cards) == 0 {
		cards = append(cards, ActionCard{
			Insight: "No strong pattern detected",
			Action:  "Monitor and collect more meetings",
			Impact:  "Low immediate intervention",
		})
	}
	return cards
}

func ratedMeetings(ov aggregator.Overview) int {
	n := 0
	for s, c := range ov.SentimentCounts {
		if s != types.SentimentUnknown {
			n += c
		}
	}
	return n
}
