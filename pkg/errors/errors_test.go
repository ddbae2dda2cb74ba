package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// TestErrorWrappingCompatibility checks that typed errors survive %w wrapping.
func TestErrorWrappingCompatibility(t *testing.T) {
	original := mlErrors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	wrapped := fmt.Errorf("forecast view failed: %w", original)

	assert.True(t, errors.Is(wrapped, original))
	assert.True(t, errors.Is(wrapped, mlErrors.ErrNotFitted))

	var nf *mlErrors.NotFittedError
	require.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "GradientBoostingRegressor", nf.ModelName)
	assert.Equal(t, "Predict", nf.Method)
}

func TestModelErrorUnwrap(t *testing.T) {
	err := mlErrors.NewModelError("demand.Train", "empty catalog", mlErrors.ErrEmptyData)
	wrapped := fmt.Errorf("train or load: %w", err)

	assert.True(t, errors.Is(wrapped, mlErrors.ErrEmptyData))

	var me *mlErrors.ModelError
	require.True(t, errors.As(wrapped, &me))
	assert.Equal(t, mlErrors.ErrEmptyData, me.Unwrap())
	assert.Equal(t, "marketlens: demand.Train: empty catalog: empty data", me.Error())
}

func TestDimensionError(t *testing.T) {
	err := mlErrors.NewDimensionError("StandardScaler.Transform", 7, 8, 1)

	var de *mlErrors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 7, de.Expected)
	assert.Equal(t, 8, de.Got)
	assert.True(t, errors.Is(err, mlErrors.ErrDimensionMismatch))
	assert.Contains(t, err.Error(), "columns")
}

func TestSchemaError(t *testing.T) {
	expected := []string{"price", "review_growth_rate"}
	got := []string{"review_growth_rate", "price"}
	err := mlErrors.NewSchemaError("demand.Predict", expected, got)

	assert.True(t, errors.Is(err, mlErrors.ErrSchemaMismatch))

	var se *mlErrors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, expected, se.Expected)
	assert.Equal(t, got, se.Got)

	// the error keeps its own copy of the column names
	got[0] = "mutated"
	assert.Equal(t, "review_growth_rate", se.Got[0])
}

func TestDataError(t *testing.T) {
	cause := errors.New("strconv.ParseFloat: parsing \"abc\": invalid syntax")
	err := mlErrors.NewDataErrorAt("clean.csv", 4, "price", "not a number", cause)

	assert.True(t, mlErrors.IsDataError(err))
	assert.True(t, mlErrors.IsDataError(fmt.Errorf("load: %w", err)))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), `clean.csv row 4 column "price"`)

	assert.False(t, mlErrors.IsDataError(mlErrors.NewValueError("x", "y")))
}

func TestValueErrorIsInvalidInput(t *testing.T) {
	err := mlErrors.NewValueErrorf("query.Validate", "price %.0f outside [%.0f, %.0f]", 2500.0, 0.0, 2000.0)

	assert.True(t, errors.Is(err, mlErrors.ErrInvalidInput))
	assert.Equal(t, "marketlens: query.Validate: price 2500 outside [0, 2000]", err.Error())
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer mlErrors.Recover(&err, "tree.Fit")
		var rows []float64
		_ = rows[3]
		return nil
	}

	err := run()
	require.Error(t, err)

	var me *mlErrors.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "tree.Fit", me.Op)
	assert.Contains(t, me.Message, "panic recovered")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, mlErrors.Wrap(nil, "context"))
	assert.NoError(t, mlErrors.Wrapf(nil, "context %d", 1))
}

// Example_errorChaining shows how pipeline errors read once wrapped.
func Example_errorChaining() {
	err := mlErrors.NewModelError("GradientBoostingRegressor.Fit", "target has no variance",
		mlErrors.ErrDegenerateTarget)
	err = mlErrors.Wrap(err, "demand model")

	fmt.Println(err)
	fmt.Println(errors.Is(err, mlErrors.ErrDegenerateTarget))

	// Output: demand model: marketlens: GradientBoostingRegressor.Fit: target has no variance: degenerate target
	// true
}
