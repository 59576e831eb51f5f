package actionable

import (
	"strings"
	"testing"

	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/types"
)

func TestGenerateDefaultCard(t *testing.T) {
	cards := Generate(aggregator.Overview{})
	if len(cards) != 1 || cards[0].Insight != "No strong pattern detected" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestGenerateFlagsProblems(t *testing.T) {
	ov := aggregator.Overview{
		FailureRate:      0.5,
		ExtractionErrors: 2,
		UnassignedRate:   0.4,
		SentimentCounts: map[types.Sentiment]int{
			types.SentimentNegative: 3,
			types.SentimentPositive: 1,
			types.SentimentUnknown:  10,
		},
	}
	cards := Generate(ov)
	if len(cards) != 4 {
		t.Fatalf("got %d cards: %+v", len(cards), cards)
	}
	if !strings.HasPrefix(cards[0].Insight, "50%") {
		t.Errorf("first card = %q, want failure rate first", cards[0].Insight)
	}
	if !strings.Contains(cards[3].Insight, "75%") {
		t.Errorf("negative share should ignore Unknown: %q", cards[3].Insight)
	}
}
