package forecast

import (
	"sort"
	"time"

	"github.com/ezoic/marketlens/internal/catalog"
)

// TrendPoint is the summed predicted demand of one feature combination on
// one date.
type TrendPoint struct {
	Date             time.Time
	Material         string
	NeckType         string
	SleeveType       string
	PredictedReviews float64
}

// TrendSummary lists the per-date combination series and the category of
// each kind with the highest mean of those sums.
type TrendSummary struct {
	Series             []TrendPoint
	EmergingMaterial   string
	EmergingNeckType   string
	EmergingSleeveType string
}

// labels reads the category names from a demand feature vector.
func labels(f []float64) (material, neck, sleeve string) {
	material, neck, sleeve = catalog.MaterialPolyester, catalog.NeckPolo, catalog.SleeveLong
	if f[2] == 1 {
		material = catalog.MaterialCotton
	}
	if f[4] == 1 {
		neck = catalog.NeckRound
	}
	if f[6] == 1 {
		sleeve = catalog.SleeveShort
	}
	return material, neck, sleeve
}

// Trends groups records by date and (material, neck, sleeve), sums the
// predictions of each group and picks the emerging category of each kind.
// Ties go to the alphabetically first category.
func Trends(records []Record) TrendSummary {
	type key struct {
		date                   time.Time
		material, neck, sleeve string
	}
	sums := make(map[key]float64)
	for _, r := range records {
		m, n, s := labels(r.Features)
		sums[key{r.Date, m, n, s}] += r.PredictedReviews
	}

	series := make([]TrendPoint, 0, len(sums))
	for k, v := range sums {
		series = append(series, TrendPoint{
			Date: k.date, Material: k.material, NeckType: k.neck, SleeveType: k.sleeve,
			PredictedReviews: v,
		})
	}
	sort.Slice(series, func(i, j int) bool {
		a, b := series[i], series[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Material != b.Material {
			return a.Material < b.Material
		}
		if a.NeckType != b.NeckType {
			return a.NeckType < b.NeckType
		}
		return a.SleeveType < b.SleeveType
	})

	return TrendSummary{
		Series:             series,
		EmergingMaterial:   argmaxMean(series, func(p TrendPoint) string { return p.Material }),
		EmergingNeckType:   argmaxMean(series, func(p TrendPoint) string { return p.NeckType }),
		EmergingSleeveType: argmaxMean(series, func(p TrendPoint) string { return p.SleeveType }),
	}
}

func argmaxMean(series []TrendPoint, group func(TrendPoint) string) string {
	sum := make(map[string]float64)
	count := make(map[string]int)
	for _, p := range series {
		g := group(p)
		sum[g] += p.PredictedReviews
		count[g]++
	}
	names := make([]string, 0, len(sum))
	for g := range sum {
		names = append(names, g)
	}
	sort.Strings(names)

	best, bestMean := "", 0.0
	for _, g := range names {
		mean := sum[g] / float64(count[g])
		if best == "" || mean > bestMean {
			best, bestMean = g, mean
		}
	}
	return best
}

// TrendingProduct is a sampled product with its total predicted demand over
// the horizon.
type TrendingProduct struct {
	Product               catalog.Product
	Detail                catalog.Detail
	TotalPredictedReviews float64
}

// TopTrending returns the n sampled products with the highest total
// predicted demand, joined back to the catalog by ProductIndex. Equal totals
// are ordered by ProductIndex.
func TopTrending(cat *catalog.Catalog, records []Record, n int) ([]TrendingProduct, error) {
	totals := make(map[int]float64)
	for _, r := range records {
		totals[r.ProductIndex] += r.PredictedReviews
	}
	indices := make([]int, 0, len(totals))
	for idx := range totals {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	sort.SliceStable(indices, func(i, j int) bool { return totals[indices[i]] > totals[indices[j]] })
	if n > 0 && n < len(indices) {
		indices = indices[:n]
	}

	out := make([]TrendingProduct, 0, len(indices))
	for _, idx := range indices {
		p, err := cat.Product(idx)
		if err != nil {
			return nil, err
		}
		d, err := cat.Detail(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, TrendingProduct{Product: p, Detail: d, TotalPredictedReviews: totals[idx]})
	}
	return out, nil
}
