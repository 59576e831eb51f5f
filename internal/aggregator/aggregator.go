package aggregator

import (
	"sort"
	"strings"

	"meeting-insights-go/internal/types"
)

const topKeywordLimit = 10

type Overview struct {
	TotalMeetings    int                     `json:"total_meetings"`
	StatusCounts     map[types.Status]int    `json:"status_counts"`
	SentimentCounts  map[types.Sentiment]int `json:"sentiment_counts"`
	TopKeywords      []types.Keyword         `json:"top_keywords"`
	ActionsByOwner   map[string]int          `json:"actions_by_owner"`
	UnassignedRate   float64                 `json:"unassigned_rate"`
	FailureRate      float64                 `json:"failure_rate"`
	ExtractionErrors int                     `json:"extraction_errors"`
}

// Aggregate summarises a set of meetings. Only completed meetings contribute
// insight figures; every meeting counts towards the status totals.
func Aggregate(meetings []types.Meeting) Overview {
	ov := Overview{
		TotalMeetings:   len(meetings),
		StatusCounts:    map[types.Status]int{},
		SentimentCounts: map[types.Sentiment]int{},
		ActionsByOwner:  map[string]int{},
		TopKeywords:     []types.Keyword{},
	}

	kwCounts := map[string]int{}
	kwFirst := map[string]string{}
	var kwOrder []string
	totalActions, unassigned := 0, 0

	for _, m := range meetings {
		ov.StatusCounts[m.Status]++
		if m.Status != types.StatusCompleted {
			continue
		}
		if m.Summary == types.ExtractionFailedSummary {
			ov.ExtractionErrors++
		}
		if m.Sentiment != "" {
			ov.SentimentCounts[m.Sentiment]++
		}
		for _, ai := range m.ActionItems {
			totalActions++
			owner := ai.AssignedTo
			if owner == "" {
				owner = types.Unassigned
			}
			if owner == types.Unassigned {
				unassigned++
			}
			ov.ActionsByOwner[owner]++
		}
		for _, kw := range m.Keywords {
			key := strings.ToLower(kw.Keyword)
			if _, ok := kwFirst[key]; !ok {
				kwFirst[key] = kw.Keyword
				kwOrder = append(kwOrder, key)
			}
			kwCounts[key] += kw.Count
		}
	}

	for _, key := range kwOrder {
		ov.TopKeywords = append(ov.TopKeywords, types.Keyword{Keyword: kwFirst[key], Count: kwCounts[key]})
	}
	sort.SliceStable(ov.TopKeywords, func(i, j int) bool {
		return ov.TopKeywords[i].Count > ov.TopKeywords[j].Count
	})
	if len(ov.TopKeywords) > topKeywordLimit {
		ov.TopKeywords = ov.TopKeywords[:topKeywordLimit]
	}

	if totalActions > 0 {
		ov.UnassignedRate = float64(unassigned) / float64(totalActions)
	}
	if finished := ov.StatusCounts[types.StatusCompleted] + ov.StatusCounts[types.StatusFailed]; finished > 0 {
		ov.FailureRate = float64(ov.StatusCounts[types.StatusFailed]) / float64(finished)
	}
	return ov
}
