package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/marketlens/core/model"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// OneHotEncoder expands each categorical column into one indicator column per
// category. Categories are either learned in Fit (sorted) or fixed up front
// with NewOneHotEncoderWithCategories, in which case their order is kept as
// given and Fit only validates the data.
type OneHotEncoder struct {
	model.BaseEstimator

	// Categories lists the known categories per input column.
	Categories [][]string

	// CategoryToIdx maps a category to its position within its column block.
	CategoryToIdx []map[string]int

	// NFeatures is the number of input columns.
	NFeatures int

	// NOutputs is the total number of indicator columns.
	NOutputs int

	// HandleUnknown is "ignore" (all zeros) or "error".
	HandleUnknown string

	fixed bool
}

// NewOneHotEncoder creates an encoder that learns categories in Fit and
// ignores unknown categories at transform time.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{HandleUnknown: "ignore"}
}

// NewOneHotEncoderWithCategories creates an encoder with a fixed category
// order per column. It is fitted immediately and rejects unknown categories.
func NewOneHotEncoderWithCategories(categories [][]string) *OneHotEncoder {
	e := &OneHotEncoder{HandleUnknown: "error", fixed: true}
	e.setCategories(categories)
	e.SetFitted()
	return e
}

func (e *OneHotEncoder) setCategories(categories [][]string) {
	e.NFeatures = len(categories)
	e.Categories = make([][]string, len(categories))
	e.CategoryToIdx = make([]map[string]int, len(categories))
	e.NOutputs = 0
	for j, cats := range categories {
		e.Categories[j] = append([]string(nil), cats...)
		idx := make(map[string]int, len(cats))
		for i, c := range cats {
			idx[c] = i
		}
		e.CategoryToIdx[j] = idx
		e.NOutputs += len(cats)
	}
}

// Fit learns the sorted set of categories per column. For an encoder created
// with fixed categories it only checks that data uses known categories.
func (e *OneHotEncoder) Fit(data [][]string) (err error) {
	defer mlErrors.Recover(&err, "OneHotEncoder.Fit")
	if len(data) == 0 || len(data[0]) == 0 {
		return mlErrors.NewModelError("OneHotEncoder.Fit", "empty data", mlErrors.ErrEmptyData)
	}

	nFeatures := len(data[0])
	for _, row := range data {
		if len(row) != nFeatures {
			return mlErrors.NewDimensionError("OneHotEncoder.Fit", nFeatures, len(row), 1)
		}
	}

	if e.fixed {
		if nFeatures != e.NFeatures {
			return mlErrors.NewDimensionError("OneHotEncoder.Fit", e.NFeatures, nFeatures, 1)
		}
		for _, row := range data {
			if err := e.checkKnown("OneHotEncoder.Fit", row); err != nil {
				return err
			}
		}
		return nil
	}

	categories := make([][]string, nFeatures)
	for j := 0; j < nFeatures; j++ {
		seen := make(map[string]struct{})
		for _, row := range data {
			seen[row[j]] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		categories[j] = cats
	}
	e.setCategories(categories)

	e.SetFitted()
	return nil
}

func (e *OneHotEncoder) checkKnown(op string, row []string) error {
	for j, v := range row {
		if _, ok := e.CategoryToIdx[j][v]; !ok {
			return mlErrors.NewValueErrorf(op, "unknown category %q for column %d, expected one of %v",
				v, j, e.Categories[j])
		}
	}
	return nil
}

// Transform encodes data into a (len(data), NOutputs) 0/1 matrix.
func (e *OneHotEncoder) Transform(data [][]string) (_ *mat.Dense, err error) {
	defer mlErrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.IsFitted() {
		return nil, mlErrors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(data) == 0 {
		return nil, mlErrors.NewModelError("OneHotEncoder.Transform", "empty data", mlErrors.ErrEmptyData)
	}

	result := mat.NewDense(len(data), e.NOutputs, nil)
	for i, row := range data {
		if len(row) != e.NFeatures {
			return nil, mlErrors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, len(row), 1)
		}
		if e.HandleUnknown == "error" {
			if err := e.checkKnown("OneHotEncoder.Transform", row); err != nil {
				return nil, err
			}
		}
		offset := 0
		for j, v := range row {
			if idx, ok := e.CategoryToIdx[j][v]; ok {
				result.Set(i, offset+idx, 1)
			}
			offset += len(e.Categories[j])
		}
	}
	return result, nil
}

// FitTransform fits on data and returns it encoded.
func (e *OneHotEncoder) FitTransform(data [][]string) (*mat.Dense, error) {
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// GetFeatureNamesOut returns output column names. With nil inputFeatures the
// bare category names are returned; otherwise "<input>_<category>".
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string) []string {
	if !e.IsFitted() {
		return nil
	}
	names := make([]string, 0, e.NOutputs)
	for j, cats := range e.Categories {
		for _, c := range cats {
			if j < len(inputFeatures) {
				names = append(names, fmt.Sprintf("%s_%s", inputFeatures[j], c))
			} else {
				names = append(names, c)
			}
		}
	}
	return names
}
