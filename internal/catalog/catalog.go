// Package catalog loads the apparel product catalog: a feature table of
// prices, ratings, review counts and one-hot material/neck/sleeve indicators,
// and a detail table of titles, links and descriptions.
//
// Every product receives ProductIndex equal to its row position at load time.
// Details are reached only through Catalog.Detail, which checks that the
// index refers to a real row, so the two tables can never silently misalign.
package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// Feature table columns.
const (
	ColPrice            = "price"
	ColRating           = "rating"
	ColReviews          = "reviews"
	ColReviewGrowthRate = "review_growth_rate"
	ColCotton           = "Cotton"
	ColPolyester        = "Polyester"
	ColRoundNeck        = "Round Neck"
	ColPoloNeck         = "Polo Neck"
	ColShortSleeve      = "Short Sleeve"
	ColLongSleeve       = "Long Sleeve"
)

// Detail table columns.
const (
	ColTitle              = "title"
	ColProductLink        = "product_link"
	ColSource             = "source"
	ColProductDetails     = "product_details"
	ColAdditionalFeatures = "additional_features"
)

// Category values. Each is also the name of its indicator column.
const (
	MaterialCotton    = ColCotton
	MaterialPolyester = ColPolyester
	NeckRound         = ColRoundNeck
	NeckPolo          = ColPoloNeck
	SleeveShort       = ColShortSleeve
	SleeveLong        = ColLongSleeve
)

// IndicatorColumns lists the one-hot columns as (material, neck, sleeve) pairs.
var IndicatorColumns = []string{
	ColCotton, ColPolyester,
	ColRoundNeck, ColPoloNeck,
	ColShortSleeve, ColLongSleeve,
}

// CategoryPairs lists the mutually exclusive indicator pairs.
var CategoryPairs = [][2]string{
	{ColCotton, ColPolyester},
	{ColRoundNeck, ColPoloNeck},
	{ColShortSleeve, ColLongSleeve},
}

// Product is one row of the feature table.
type Product struct {
	ProductIndex     int
	Price            float64
	Rating           float64
	Reviews          int
	ReviewGrowthRate float64

	Cotton      float64
	Polyester   float64
	RoundNeck   float64
	PoloNeck    float64
	ShortSleeve float64
	LongSleeve  float64
}

// Indicator returns the value of a one-hot column by name, and false when
// name is not an indicator column.
func (p Product) Indicator(name string) (float64, bool) {
	switch name {
	case ColCotton:
		return p.Cotton, true
	case ColPolyester:
		return p.Polyester, true
	case ColRoundNeck:
		return p.RoundNeck, true
	case ColPoloNeck:
		return p.PoloNeck, true
	case ColShortSleeve:
		return p.ShortSleeve, true
	case ColLongSleeve:
		return p.LongSleeve, true
	}
	return 0, false
}

// Has reports whether the indicator column name is set for p.
func (p Product) Has(name string) bool {
	v, ok := p.Indicator(name)
	return ok && v == 1
}

// Material returns "Cotton" or "Polyester".
func (p Product) Material() string {
	if p.Cotton == 1 {
		return MaterialCotton
	}
	return MaterialPolyester
}

// NeckType returns "Round Neck" or "Polo Neck".
func (p Product) NeckType() string {
	if p.RoundNeck == 1 {
		return NeckRound
	}
	return NeckPolo
}

// SleeveType returns "Short Sleeve" or "Long Sleeve".
func (p Product) SleeveType() string {
	if p.ShortSleeve == 1 {
		return SleeveShort
	}
	return SleeveLong
}

// Detail is one row of the detail table.
type Detail struct {
	ProductIndex       int
	Title              string
	ProductLink        string
	Source             string
	ProductDetails     string
	AdditionalFeatures string
}

// Catalog is an immutable pair of aligned product and detail tables.
type Catalog struct {
	products []Product
	details  []Detail
	checksum string
}

// New builds a catalog from already parsed tables. It assigns ProductIndex
// by position and validates row alignment and the one-hot invariant.
func New(products []Product, details []Detail) (*Catalog, error) {
	if len(products) != len(details) {
		return nil, mlErrors.NewDataError("catalog",
			"feature and detail tables have different row counts", nil)
	}
	c := &Catalog{
		products: make([]Product, len(products)),
		details:  make([]Detail, len(details)),
	}
	for i := range products {
		p := products[i]
		p.ProductIndex = i
		if err := validateProduct(p, "catalog", i+1); err != nil {
			return nil, err
		}
		d := details[i]
		d.ProductIndex = i
		c.products[i] = p
		c.details[i] = d
	}
	c.checksum = checksum(c.products)
	return c, nil
}

func validateProduct(p Product, source string, row int) error {
	for _, pair := range CategoryPairs {
		a, _ := p.Indicator(pair[0])
		b, _ := p.Indicator(pair[1])
		for _, col := range pair {
			if v, _ := p.Indicator(col); v != 0 && v != 1 {
				return mlErrors.NewDataErrorAt(source, row, col, "indicator must be 0 or 1", nil)
			}
		}
		if a+b != 1 {
			return mlErrors.NewDataErrorAt(source, row, pair[0]+"/"+pair[1],
				"exactly one indicator of the pair must be set", nil)
		}
	}
	for _, v := range []float64{p.Price, p.Rating, p.ReviewGrowthRate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return mlErrors.NewDataErrorAt(source, row, "", "non-finite numeric value", nil)
		}
	}
	if p.Reviews < 0 {
		return mlErrors.NewDataErrorAt(source, row, ColReviews, "review count must not be negative", nil)
	}
	return nil
}

// checksum hashes every value that feeds the demand model, in row order.
func checksum(products []Product) string {
	h := sha256.New()
	buf := make([]byte, 8)
	put := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		_, _ = h.Write(buf)
	}
	for _, p := range products {
		put(p.Price)
		put(p.ReviewGrowthRate)
		put(p.Cotton)
		put(p.Polyester)
		put(p.RoundNeck)
		put(p.PoloNeck)
		put(p.ShortSleeve)
		put(p.LongSleeve)
		put(float64(p.Reviews))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// Products returns a copy of the feature table.
func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

// Product returns the product at idx.
func (c *Catalog) Product(idx int) (Product, error) {
	if idx < 0 || idx >= len(c.products) {
		return Product{}, mlErrors.NewValueErrorf("Catalog.Product",
			"product index %d out of range [0, %d)", idx, len(c.products))
	}
	return c.products[idx], nil
}

// Detail returns the detail row joined to productIndex.
func (c *Catalog) Detail(productIndex int) (Detail, error) {
	if productIndex < 0 || productIndex >= len(c.details) {
		return Detail{}, mlErrors.NewValueErrorf("Catalog.Detail",
			"product index %d out of range [0, %d)", productIndex, len(c.details))
	}
	d := c.details[productIndex]
	if d.ProductIndex != productIndex || c.products[productIndex].ProductIndex != productIndex {
		return Detail{}, mlErrors.NewDataErrorAt("catalog", productIndex+1, "product_index",
			"detail row is not aligned with its product", nil)
	}
	return d, nil
}

// Checksum identifies the training-relevant content of the catalog.
func (c *Catalog) Checksum() string { return c.checksum }

// Column returns the values of a numeric column by name.
func (c *Catalog) Column(name string) ([]float64, error) {
	out := make([]float64, len(c.products))
	for i, p := range c.products {
		switch name {
		case ColPrice:
			out[i] = p.Price
		case ColRating:
			out[i] = p.Rating
		case ColReviews:
			out[i] = float64(p.Reviews)
		case ColReviewGrowthRate:
			out[i] = p.ReviewGrowthRate
		default:
			v, ok := p.Indicator(name)
			if !ok {
				return nil, mlErrors.NewValueErrorf("Catalog.Column", "unknown column %q", name)
			}
			out[i] = v
		}
	}
	return out, nil
}
