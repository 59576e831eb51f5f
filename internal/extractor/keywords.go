package extractor

import (
	"regexp"
	"sort"
	"strings"

	"meeting-insights-go/internal/types"
)

const MaxKeywords = 7

// CountKeywords counts whole-word, case-insensitive occurrences of each
// keyword in transcript. Keywords that never occur are dropped; the rest are
// ordered by count (ties keep model order) and capped at MaxKeywords.
func CountKeywords(keywords []string, transcript string) []types.Keyword {
	out := make([]types.Keyword, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true

		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			continue
		}
		if n := len(re.FindAllStringIndex(transcript, -1)); n > 0 {
			out = append(out, types.Keyword{Keyword: kw, Count: n})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > MaxKeywords {
		out = out[:MaxKeywords]
	}
	return out
}
