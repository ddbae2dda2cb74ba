package catalog

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

var featureColumns = []string{
	ColPrice, ColRating, ColReviews, ColReviewGrowthRate,
	ColCotton, ColPolyester, ColRoundNeck, ColPoloNeck, ColShortSleeve, ColLongSleeve,
}

var detailColumns = []string{
	ColTitle, ColProductLink, ColSource, ColProductDetails, ColAdditionalFeatures,
}

// Load reads the feature table at cleanPath and the detail table at fullPath.
// Any missing file, missing column or malformed value is a DataError.
func Load(cleanPath, fullPath string) (*Catalog, error) {
	logger := log.GetLoggerWithName("catalog")
	start := time.Now()

	products, err := readProducts(cleanPath)
	if err != nil {
		return nil, err
	}
	details, err := readDetails(fullPath)
	if err != nil {
		return nil, err
	}
	if len(products) != len(details) {
		return nil, mlErrors.NewDataError(cleanPath+", "+fullPath,
			"feature table has "+strconv.Itoa(len(products))+" rows but detail table has "+
				strconv.Itoa(len(details)), nil)
	}

	c, err := New(products, details)
	if err != nil {
		return nil, err
	}

	logger.Info("Catalog loaded",
		log.OperationKey, log.OperationLoad,
		log.PhaseKey, log.PhaseIngestion,
		log.SamplesKey, c.Len(),
		log.PathKey, cleanPath,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return c, nil
}

// table is a CSV file addressed by header name.
type table struct {
	source string
	index  map[string]int
	rows   [][]string
}

func readTable(path string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mlErrors.NewDataError(path, "failed to open file", err)
	}
	defer func() { _ = f.Close() }()
	return parseTable(path, f, required)
}

func parseTable(source string, r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, mlErrors.NewDataError(source, "file is empty", nil)
	}
	if err != nil {
		return nil, mlErrors.NewDataError(source, "failed to read header", err)
	}

	t := &table{source: source, index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, mlErrors.NewDataErrorAt(source, 0, col, "required column is missing", nil)
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mlErrors.NewDataErrorAt(source, len(t.rows)+1, "", "malformed record", err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) str(row int, col string) string {
	return t.rows[row][t.index[col]]
}

func (t *table) float(row int, col string) (float64, error) {
	raw := strings.TrimSpace(t.str(row, col))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, mlErrors.NewDataErrorAt(t.source, row+1, col, "not a number: "+strconv.Quote(raw), err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, mlErrors.NewDataErrorAt(t.source, row+1, col, "value must be finite", nil)
	}
	return v, nil
}

// indicator accepts 0/1 in integer, float or boolean spelling.
func (t *table) indicator(row int, col string) (float64, error) {
	raw := strings.TrimSpace(t.str(row, col))
	if b, err := strconv.ParseBool(raw); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || (v != 0 && v != 1) {
		return 0, mlErrors.NewDataErrorAt(t.source, row+1, col, "indicator must be 0 or 1, got "+strconv.Quote(raw), err)
	}
	return v, nil
}

func readProducts(path string) ([]Product, error) {
	t, err := readTable(path, featureColumns)
	if err != nil {
		return nil, err
	}
	return t.products()
}

func (t *table) products() ([]Product, error) {
	out := make([]Product, len(t.rows))
	for i := range t.rows {
		p := Product{ProductIndex: i}
		var err error
		if p.Price, err = t.float(i, ColPrice); err != nil {
			return nil, err
		}
		if p.Rating, err = t.float(i, ColRating); err != nil {
			return nil, err
		}
		reviews, err := t.float(i, ColReviews)
		if err != nil {
			return nil, err
		}
		if reviews != math.Trunc(reviews) {
			return nil, mlErrors.NewDataErrorAt(t.source, i+1, ColReviews, "review count must be integral", nil)
		}
		p.Reviews = int(reviews)
		if p.ReviewGrowthRate, err = t.float(i, ColReviewGrowthRate); err != nil {
			return nil, err
		}

		targets := []*float64{&p.Cotton, &p.Polyester, &p.RoundNeck, &p.PoloNeck, &p.ShortSleeve, &p.LongSleeve}
		for j, col := range IndicatorColumns {
			if *targets[j], err = t.indicator(i, col); err != nil {
				return nil, err
			}
		}
		if err := validateProduct(p, t.source, i+1); err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func readDetails(path string) ([]Detail, error) {
	t, err := readTable(path, detailColumns)
	if err != nil {
		return nil, err
	}
	out := make([]Detail, len(t.rows))
	for i := range t.rows {
		out[i] = Detail{
			ProductIndex:       i,
			Title:              t.str(i, ColTitle),
			ProductLink:        t.str(i, ColProductLink),
			Source:             t.str(i, ColSource),
			ProductDetails:     t.str(i, ColProductDetails),
			AdditionalFeatures: t.str(i, ColAdditionalFeatures),
		}
	}
	return out, nil
}
