package demand

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/internal/catalog"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// SchemaVersion changes whenever the feature columns or their encoding
// change. Artifacts trained under another version are retrained.
const SchemaVersion = "v1"

// Schema is the ordered list of model input columns.
type Schema struct {
	Version string
	Columns []string
}

// FeatureSchema returns the demand model inputs: price, review growth rate
// and the six one-hot indicators.
func FeatureSchema() Schema {
	return Schema{
		Version: SchemaVersion,
		Columns: []string{
			catalog.ColPrice,
			catalog.ColReviewGrowthRate,
			catalog.ColCotton,
			catalog.ColPolyester,
			catalog.ColRoundNeck,
			catalog.ColPoloNeck,
			catalog.ColShortSleeve,
			catalog.ColLongSleeve,
		},
	}
}

// Equal reports whether both schemas have the same version and columns.
func (s Schema) Equal(o Schema) bool {
	return s.Version == o.Version && slices.Equal(s.Columns, o.Columns)
}

// FeatureRows is a batch of model inputs with named columns.
type FeatureRows struct {
	Columns []string
	Values  [][]float64
}

// NewFeatureRows returns an empty batch with the default schema's columns.
func NewFeatureRows() FeatureRows {
	return FeatureRows{Columns: FeatureSchema().Columns}
}

// Append adds one row. It does not validate the row length.
func (r *FeatureRows) Append(row []float64) {
	r.Values = append(r.Values, row)
}

// Len returns the number of rows.
func (r FeatureRows) Len() int { return len(r.Values) }

// ProductVector returns p's features in FeatureSchema order.
func ProductVector(p catalog.Product) []float64 {
	return []float64{
		p.Price,
		p.ReviewGrowthRate,
		p.Cotton,
		p.Polyester,
		p.RoundNeck,
		p.PoloNeck,
		p.ShortSleeve,
		p.LongSleeve,
	}
}

// RowsFromProducts builds a batch from catalog products.
func RowsFromProducts(products []catalog.Product) FeatureRows {
	rows := NewFeatureRows()
	rows.Values = make([][]float64, 0, len(products))
	for _, p := range products {
		rows.Append(ProductVector(p))
	}
	return rows
}

// matrix checks rows against schema and packs them into a dense matrix.
func (s Schema) matrix(op string, rows FeatureRows) (*mat.Dense, error) {
	if !slices.Equal(s.Columns, rows.Columns) {
		return nil, mlErrors.NewSchemaError(op, s.Columns, rows.Columns)
	}
	n, d := len(rows.Values), len(s.Columns)
	if n == 0 {
		return nil, nil
	}
	X := mat.NewDense(n, d, nil)
	for i, row := range rows.Values {
		if len(row) != d {
			return nil, mlErrors.NewDimensionError(op, d, len(row), 1)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, mlErrors.NewValueErrorf(op, "non-finite value in row %d column %q", i, s.Columns[j])
			}
		}
		X.SetRow(i, row)
	}
	return X, nil
}

// catalogMatrix returns the feature matrix and review targets of cat.
func catalogMatrix(cat *catalog.Catalog) (*mat.Dense, *mat.VecDense) {
	products := cat.Products()
	d := len(FeatureSchema().Columns)
	X := mat.NewDense(len(products), d, nil)
	y := mat.NewVecDense(len(products), nil)
	for i, p := range products {
		X.SetRow(i, ProductVector(p))
		y.SetVec(i, float64(p.Reviews))
	}
	return X, y
}
