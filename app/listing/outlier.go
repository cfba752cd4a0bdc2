package listing

import (
	"math"
	"sort"

	"github.com/lysyi3m/price-comb/app/source"
)

const (
	DefaultQuantile = 0.75

	// bimodalRatio is the IQR share of the max price above which a batch is
	// treated as product plus accessories
	bimodalRatio   = 0.5
	minClusterSize = 3
	maxIterations  = 50
)

// Rule names the branch FilterOutliers took
type Rule string

const (
	RuleNone     Rule = "none"
	RuleCluster  Rule = "cluster"
	RuleQuantile Rule = "quantile"
)

// clusterResult is the outcome of splitting sorted prices into two groups.
// split is the index of the first price of the higher group.
type clusterResult struct {
	split int
	ok    bool
}

// FilterOutliers drops low-priced listings that are likely accessories or
// unrelated bundles. The listing with the batch's maximum price always
// survives, and a non-empty input never yields an empty output.
func FilterOutliers(listings []source.RawListing, quantile float64) ([]source.RawListing, Rule) {
	if len(listings) == 0 {
		return []source.RawListing{}, RuleNone
	}
	if quantile <= 0 || quantile > 1 {
		quantile = DefaultQuantile
	}

	prices := make([]float64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price
	}
	sort.Float64s(prices)

	if len(prices) >= minClusterSize && isBimodal(prices) {
		if result := twoMeans(prices); result.ok {
			return atOrAbove(listings, prices[result.split]), RuleCluster
		}
	}

	return atOrAbove(listings, prices[quantileIndex(len(prices), quantile)]), RuleQuantile
}

func quantileIndex(n int, q float64) int {
	return min(int(math.Floor(float64(n)*q)), n-1)
}

func isBimodal(sorted []float64) bool {
	n := len(sorted)
	q1 := sorted[quantileIndex(n, 0.25)]
	q3 := sorted[quantileIndex(n, 0.75)]
	maxPrice := sorted[n-1]

	return q3-q1 > bimodalRatio*maxPrice
}

// twoMeans runs 1-D k-means with k=2 on sorted prices, seeding the centroids
// with the minimum and maximum. It reports failure instead of guessing when
// the data cannot be split into two non-empty groups.
func twoMeans(sorted []float64) clusterResult {
	n := len(sorted)
	low, high := sorted[0], sorted[n-1]
	if low == high {
		return clusterResult{}
	}

	split := -1
	for range maxIterations {
		boundary := (low + high) / 2
		next := sort.Search(n, func(i int) bool { return sorted[i] > boundary })
		if next == 0 || next == n {
			return clusterResult{}
		}
		if next == split {
			break
		}
		split = next

		low = mean(sorted[:split])
		high = mean(sorted[split:])
		if low == high {
			return clusterResult{}
		}
	}

	return clusterResult{split: split, ok: true}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func atOrAbove(listings []source.RawListing, floor float64) []source.RawListing {
	kept := make([]source.RawListing, 0, len(listings))
	for _, l := range listings {
		if l.Price >= floor {
			kept = append(kept, l)
		}
	}
	return kept
}
