package maillog

import (
	"context"
	"sort"
	"strings"
	"time"
)

const statsReadLimit = 10000

// Statistics summarizes delivery failures over common reporting windows.
type Statistics struct {
	Total      int           `json:"total"`
	Today      int           `json:"today"`
	Week       int           `json:"week"`
	Month      int           `json:"month"`
	TopDomains []DomainCount `json:"topDomains"`
}

type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Statistics aggregates failure counts for today, the last 7 days and the
// last 30 days, plus the ten most-failing recipient domains.
func (s *Source) Statistics(ctx context.Context, now time.Time) (Statistics, error) {
	failed, err := s.FailedEntries(ctx, statsReadLimit)
	if err != nil {
		return Statistics{}, err
	}

	year, month, day := now.Date()
	todayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)
	monthStart := now.AddDate(0, 0, -30)

	stats := Statistics{Total: len(failed)}
	domainCounts := make(map[string]int)

	for _, entry := range failed {
		if !entry.Timestamp.Before(todayStart) {
			stats.Today++
		}
		if !entry.Timestamp.Before(weekStart) {
			stats.Week++
		}
		if !entry.Timestamp.Before(monthStart) {
			stats.Month++
		}

		for _, addr := range ExtractAddresses(entry.To + " " + entry.ErrorMessage) {
			if dom := ExtractDomain(addr); dom != "" {
				domainCounts[strings.ToLower(dom)]++
			}
		}
	}

	stats.TopDomains = topDomains(domainCounts, 10)
	return stats, nil
}

func topDomains(counts map[string]int, limit int) []DomainCount {
	ranked := make([]DomainCount, 0, len(counts))
	for dom, count := range counts {
		ranked = append(ranked, DomainCount{Domain: dom, Count: count})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Domain < ranked[j].Domain
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
