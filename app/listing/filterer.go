package listing

import (
	"github.com/lysyi3m/price-comb/app/source"
)

// Stats counts listings at each filtering stage
type Stats struct {
	Fetched  int
	Relevant int
	Priced   int
	Unique   int
	Rule     Rule
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run applies relevance, the outlier filter and dedup to one source's batch
func (f *Filterer) Run(listings []source.RawListing, searchTerm string, quantile float64) ([]source.RawListing, Stats) {
	stats := Stats{Fetched: len(listings), Rule: RuleNone}

	relevant := make([]source.RawListing, 0, len(listings))
	for _, l := range listings {
		if IsRelevant(l.Name, searchTerm) {
			relevant = append(relevant, l)
		}
	}
	stats.Relevant = len(relevant)

	priced, rule := FilterOutliers(relevant, quantile)
	stats.Priced = len(priced)
	stats.Rule = rule

	unique := Dedup(priced)
	stats.Unique = len(unique)

	return unique, stats
}
