package predictor

import (
	"fmt"
	"math"
	"strings"
)

// Policy selects how ranked neighbours are reduced to one category.
type Policy string

const (
	// PolicyBestOfFilteredVote surfaces the nearest neighbour when it is
	// below the threshold, otherwise votes among the neighbours at or above
	// it. Confidence is a similarity or a vote share.
	PolicyBestOfFilteredVote Policy = "best_of_filtered_vote"

	// PolicyWeightedSoftmax sums similarities per category and reports the
	// softmax probability of the best one.
	PolicyWeightedSoftmax Policy = "weighted_softmax"

	// PolicySingleNearest accepts the nearest neighbour only when its
	// similarity reaches the threshold.
	PolicySingleNearest Policy = "single_nearest_threshold"
)

// DefaultPolicy is used when none is configured.
const DefaultPolicy = PolicyBestOfFilteredVote

// Policies lists every supported policy.
var Policies = []Policy{PolicyBestOfFilteredVote, PolicyWeightedSoftmax, PolicySingleNearest}

// ParsePolicy parses a policy name. The empty string yields DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return DefaultPolicy, nil
	}
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown voting policy %q", s)
}

// Vote reduces neighbours, ordered by descending similarity, to a category
// and a confidence in [0, 1]. An empty category means no prediction. k is
// the number of neighbours that was requested.
func Vote(policy Policy, neighbors []Neighbor, threshold float64, k int) (string, float64) {
	if len(neighbors) == 0 {
		return "", 0
	}
	switch policy {
	case PolicyWeightedSoftmax:
		return weightedSoftmax(neighbors, threshold, k)
	case PolicySingleNearest:
		return singleNearest(neighbors, threshold)
	default:
		return bestOfFilteredVote(neighbors, threshold)
	}
}

func bestOfFilteredVote(neighbors []Neighbor, threshold float64) (string, float64) {
	best := 0
	for i, n := range neighbors {
		if n.Similarity > neighbors[best].Similarity {
			best = i
		}
	}
	maxSim := neighbors[best].Similarity

	if maxSim < threshold {
		return neighbors[best].Category, clamp01(maxSim)
	}

	var order []string
	counts := map[string]int{}
	filtered := 0
	for _, n := range neighbors {
		if n.Similarity < threshold {
			continue
		}
		filtered++
		if counts[n.Category] == 0 {
			order = append(order, n.Category)
		}
		counts[n.Category]++
	}

	if len(order) == 1 {
		return order[0], clamp01(maxSim)
	}

	// Ties go to the category seen first.
	winner := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[winner] {
			winner = c
		}
	}
	return winner, float64(counts[winner]) / float64(filtered)
}

func weightedSoftmax(neighbors []Neighbor, threshold float64, k int) (string, float64) {
	var order []string
	sums := map[string]float64{}
	for _, n := range neighbors {
		if _, ok := sums[n.Category]; !ok {
			order = append(order, n.Category)
		}
		sums[n.Category] += n.Similarity
	}

	maxSum := math.Inf(-1)
	for _, c := range order {
		maxSum = math.Max(maxSum, sums[c])
	}

	var total float64
	exps := make(map[string]float64, len(order))
	for _, c := range order {
		e := math.Exp(sums[c] - maxSum)
		exps[c] = e
		total += e
	}

	best := order[0]
	for _, c := range order[1:] {
		if exps[c] > exps[best] {
			best = c
		}
	}
	confidence := exps[best] / total

	if k < 1 {
		k = len(neighbors)
	}
	if sums[best] > threshold*float64(k-1) {
		return best, confidence
	}
	return "", confidence
}

func singleNearest(neighbors []Neighbor, threshold float64) (string, float64) {
	nearest := neighbors[0]
	for _, n := range neighbors[1:] {
		if n.Similarity > nearest.Similarity {
			nearest = n
		}
	}
	if nearest.Similarity >= threshold {
		return nearest.Category, clamp01(nearest.Similarity)
	}
	return "", 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
