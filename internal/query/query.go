// Package query validates the user-specified product that the similarity,
// forecast and strategy views compare against the catalog.
package query

import (
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/ezoic/marketlens/internal/catalog"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/preprocessing"
)

// Growth rates assumed when the user leaves the review growth rate unset.
// The sidebar query never asks for one; the strategy tool starts its input
// at 0.1.
const (
	DefaultReviewGrowthRate  = 0.0
	StrategyReviewGrowthRate = 0.1
)

// Default accepted price range.
const (
	DefaultMinPrice = 0.0
	DefaultMaxPrice = 2000.0
)

// FeatureNames is the column order of Product.Features.
var FeatureNames = []string{
	catalog.ColPrice, catalog.ColReviewGrowthRate,
	catalog.ColCotton, catalog.ColPolyester,
	catalog.ColRoundNeck, catalog.ColPoloNeck,
	catalog.ColShortSleeve, catalog.ColLongSleeve,
}

// SimilarityFeatureNames is the column order of Product.SimilarityFeatures.
var SimilarityFeatureNames = []string{
	catalog.ColPrice,
	catalog.ColCotton, catalog.ColPolyester,
	catalog.ColRoundNeck, catalog.ColPoloNeck,
	catalog.ColShortSleeve, catalog.ColLongSleeve,
}

// Product is a hypothetical product described by the user.
type Product struct {
	Price            float64  `json:"price" validate:"min=0"`
	Material         string   `json:"material" validate:"required,oneof=Cotton Polyester"`
	NeckType         string   `json:"neck_type" validate:"required,oneof='Round Neck' 'Polo Neck'"`
	SleeveType       string   `json:"sleeve_type" validate:"required,oneof='Short Sleeve' 'Long Sleeve'"`
	ReviewGrowthRate *float64 `json:"review_growth_rate,omitempty"`
}

// Bounds is the accepted price range, inclusive.
type Bounds struct {
	MinPrice float64
	MaxPrice float64
}

// DefaultBounds returns [0, 2000].
func DefaultBounds() Bounds {
	return Bounds{MinPrice: DefaultMinPrice, MaxPrice: DefaultMaxPrice}
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	encoder  = preprocessing.NewOneHotEncoderWithCategories([][]string{
		{catalog.MaterialCotton, catalog.MaterialPolyester},
		{catalog.NeckRound, catalog.NeckPolo},
		{catalog.SleeveShort, catalog.SleeveLong},
	})
)

// Validate checks the categorical choices and that the price lies inside b.
// Out-of-range prices are rejected, never clamped.
func (p Product) Validate(b Bounds) error {
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return mlErrors.NewValueError("query.Validate", "price must be finite")
	}
	if err := validate.Struct(p); err != nil {
		return mlErrors.Wrap(mlErrors.NewValueError("query.Validate", err.Error()), "invalid product")
	}
	if p.Price < b.MinPrice || p.Price > b.MaxPrice {
		return mlErrors.NewValueErrorf("query.Validate", "price %g outside accepted range [%g, %g]",
			p.Price, b.MinPrice, b.MaxPrice)
	}
	if g := p.ReviewGrowthRate; g != nil && (math.IsNaN(*g) || math.IsInf(*g, 0)) {
		return mlErrors.NewValueError("query.Validate", "review growth rate must be finite")
	}
	return nil
}

// GrowthRate returns the review growth rate, or def when unset.
func (p Product) GrowthRate(def float64) float64 {
	if p.ReviewGrowthRate == nil {
		return def
	}
	return *p.ReviewGrowthRate
}

// WithGrowthRate returns a copy of p with the growth rate set.
func (p Product) WithGrowthRate(g float64) Product {
	p.ReviewGrowthRate = &g
	return p
}

// Indicators returns the six one-hot values in catalog.IndicatorColumns order.
func (p Product) Indicators() ([]float64, error) {
	enc, err := encoder.Transform([][]string{{p.Material, p.NeckType, p.SleeveType}})
	if err != nil {
		return nil, err
	}
	return enc.RawRowView(0), nil
}

// Features returns the demand model inputs in FeatureNames order, using
// defaultGrowth when the growth rate is unset.
func (p Product) Features(defaultGrowth float64) ([]float64, error) {
	ind, err := p.Indicators()
	if err != nil {
		return nil, err
	}
	return append([]float64{p.Price, p.GrowthRate(defaultGrowth)}, ind...), nil
}

// SimilarityFeatures returns the similarity inputs in SimilarityFeatureNames
// order.
func (p Product) SimilarityFeatures() ([]float64, error) {
	ind, err := p.Indicators()
	if err != nil {
		return nil, err
	}
	return append([]float64{p.Price}, ind...), nil
}

// Has reports whether the indicator column name is set for p.
func (p Product) Has(name string) bool {
	return p.Material == name || p.NeckType == name || p.SleeveType == name
}

// FromCatalog describes an existing catalog product as a query.
func FromCatalog(cp catalog.Product) Product {
	g := cp.ReviewGrowthRate
	return Product{
		Price:            cp.Price,
		Material:         cp.Material(),
		NeckType:         cp.NeckType(),
		SleeveType:       cp.SleeveType(),
		ReviewGrowthRate: &g,
	}
}
