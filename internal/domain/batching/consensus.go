package batching

import (
	"sort"

	"github.com/phrazzld/labelhive-api/internal/domain"
)

// RankLabels flattens all submissions on an item and returns each distinct
// value once, ordered by descending frequency. Values with equal frequency
// keep the order they were first seen in, walking submissions in the given
// order and each submission's values left to right.
//
// Zero submissions yield an empty, non-nil slice.
func RankLabels(submissions []domain.LabelSubmission) []string {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, sub := range submissions {
		for _, value := range sub.Labels {
			if _, seen := counts[value]; !seen {
				order = append(order, value)
			}
			counts[value]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}
