package listing

import (
	"sort"

	"github.com/lysyi3m/price-comb/app/source"
)

type dedupKey struct {
	source string
	name   string
	seller string
}

// Dedup keeps the cheapest listing per (source, Key(name), seller). Equal
// prices are resolved by URL, so the kept set does not depend on input order.
// The result is ordered by price, then URL.
func Dedup(listings []source.RawListing) []source.RawListing {
	best := make(map[dedupKey]source.RawListing, len(listings))

	for _, l := range listings {
		key := dedupKey{
			source: l.Source,
			name:   Key(l.Name),
			seller: l.Seller,
		}

		current, ok := best[key]
		if !ok || cheaper(l, current) {
			best[key] = l
		}
	}

	result := make([]source.RawListing, 0, len(best))
	for _, l := range best {
		result = append(result, l)
	}

	sort.Slice(result, func(i, j int) bool {
		return cheaper(result[i], result[j])
	})

	return result
}

func cheaper(a, b source.RawListing) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.URL < b.URL
}
