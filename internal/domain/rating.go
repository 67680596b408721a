package domain

import (
	"sort"
	"strings"
	"time"
)

// Rating is one rater's safety verdict for a domain key.
type Rating struct {
	Domain    string    `json:"domain"`
	Rater     string    `json:"rater"`
	IsSafe    bool      `json:"isSafe"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RatingSummary struct {
	Domain       string `json:"domain"`
	SafeCount    int    `json:"safeCount"`
	UnsafeCount  int    `json:"unsafeCount"`
	TotalRatings int    `json:"totalRatings"`
	ViewerRating *bool  `json:"viewerRating"`
}

// FlaggedSite is a current unsafe rating as listed to clients.
type FlaggedSite struct {
	URL       string    `json:"url"`
	FlaggedBy string    `json:"flaggedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LatestRatings keeps one rating per rater, the most recent by UpdatedAt.
// Later entries win ties. The result is ordered by UpdatedAt ascending.
func LatestRatings(records []Rating) []Rating {
	latest := make(map[string]Rating, len(records))
	for _, r := range records {
		key := strings.ToLower(r.Rater)
		prev, ok := latest[key]
		if !ok || !r.UpdatedAt.Before(prev.UpdatedAt) {
			latest[key] = r
		}
	}

	result := make([]Rating, 0, len(latest))
	for _, r := range latest {
		result = append(result, r)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].Rater < result[j].Rater
		}
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result
}

func AggregateRatings(records []Rating, viewer string) RatingSummary {
	current := LatestRatings(records)

	summary := RatingSummary{
		TotalRatings: len(current),
	}
	for _, r := range current {
		if summary.Domain == "" {
			summary.Domain = r.Domain
		}
		if r.IsSafe {
			summary.SafeCount++
		}
		if viewer != "" && strings.EqualFold(r.Rater, viewer) {
			isSafe := r.IsSafe
			summary.ViewerRating = &isSafe
		}
	}
	summary.UnsafeCount = summary.TotalRatings - summary.SafeCount

	return summary
}
