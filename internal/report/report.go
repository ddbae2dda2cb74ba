// Package report renders the computed views as a markdown document with
// optional PNG charts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/forecast"
	"github.com/ezoic/marketlens/internal/insights"
	"github.com/ezoic/marketlens/internal/query"
	"github.com/ezoic/marketlens/internal/similarity"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// FileName is the markdown report inside the output directory.
const FileName = "report.md"

// Section names, as used with Report.Fail.
const (
	SectionMarket      = "Market Overview"
	SectionCompetitive = "Competitive Analysis"
	SectionStrategy    = "Product Strategy"
	SectionForecast    = "Demand Forecast"
)

// Report collects whatever views were computed. Nil fields are skipped.
// Failed views are listed in Errors by section name.
type Report struct {
	GeneratedAt time.Time
	Query       query.Product

	Summary         *insights.MarketSummary
	Segments        *insights.Segments
	MarketNarrative string

	Matches              []similarity.Match
	CompetitiveNarrative string

	Evaluation  *demand.Evaluation
	Baseline    *demand.Evaluation
	Importances []demand.Importance
	Strategy    *insights.StrategyReport

	Trends      *forecast.TrendSummary
	TopTrending []forecast.TrendingProduct
	DailyTotals []forecast.DailyTotal

	Errors map[string]string

	charts map[string]string
}

// Fail records that section could not be computed.
func (r *Report) Fail(section string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[section] = err.Error()
}

func money(v float64) string { return fmt.Sprintf("₹%.0f", v) }

func opt(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func (r *Report) failed(b *strings.Builder, section string) bool {
	msg, ok := r.Errors[section]
	if ok {
		fmt.Fprintf(b, "_%s unavailable: %s_\n\n", section, msg)
	}
	return ok
}

func (r *Report) chart(b *strings.Builder, file, alt string) {
	if _, ok := r.charts[file]; ok {
		fmt.Fprintf(b, "![%s](%s)\n\n", alt, file)
	}
}

// Render returns the markdown document.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Market Analysis Report\n\n")
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "**Your product:** %s, %s, %s, %s, review growth %.2f\n\n",
		money(r.Query.Price), r.Query.Material, r.Query.NeckType, r.Query.SleeveType,
		r.Query.GrowthRate(query.DefaultReviewGrowthRate))

	r.renderMarket(&b)
	r.renderCompetitive(&b)
	r.renderStrategy(&b)
	r.renderForecast(&b)
	return b.String()
}

func (r *Report) renderMarket(b *strings.Builder) {
	if r.Summary == nil && r.Errors[SectionMarket] == "" {
		return
	}
	b.WriteString("## " + SectionMarket + "\n\n")
	if r.failed(b, SectionMarket) {
		return
	}
	s := r.Summary
	fmt.Fprintf(b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Average price | %s |\n", money(s.AvgPrice))
	fmt.Fprintf(b, "| Average rating | %.1f |\n", s.AvgRating)
	fmt.Fprintf(b, "| Total products | %d |\n", s.TotalProducts)
	fmt.Fprintf(b, "| Average review growth | %.1f%% |\n", s.AvgGrowth*100)
	fmt.Fprintf(b, "| Price range | %s to %s (median %s) |\n",
		money(s.PriceRange.Min), money(s.PriceRange.Max), money(s.PriceRange.Median))
	fmt.Fprintf(b, "| Budget / premium markers | %s / %s |\n\n", money(s.Markers.Budget), money(s.Markers.Premium))
	r.chart(b, PriceChartFile, "Price distribution")

	b.WriteString("### Feature Popularity\n\n| Feature | Products | Share | Avg rating |\n|---|---|---|---|\n")
	for _, f := range s.Features {
		fmt.Fprintf(b, "| %s | %d | %.1f%% | %s |\n", f.Feature, f.Count, f.Popularity, opt(f.AvgRating, "%.1f"))
	}
	b.WriteString("\n")
	r.chart(b, FeatureChartFile, "Feature popularity")

	if r.Segments != nil {
		b.WriteString("### Price Segments\n\n| Segment | Range | Products | Avg price | Avg rating | Avg reviews |\n|---|---|---|---|---|---|\n")
		for _, seg := range r.Segments.Segments {
			fmt.Fprintf(b, "| %s | %s to %s | %d | %s | %s | %s |\n",
				seg.Label, money(seg.Low), money(seg.High), seg.Count,
				opt(seg.AvgPrice, "₹%.0f"), opt(seg.AvgRating, "%.2f"), opt(seg.AvgReviews, "%.0f"))
		}
		b.WriteString("\n")
	}
	if r.MarketNarrative != "" {
		b.WriteString("### Market Insights\n\n" + r.MarketNarrative + "\n\n")
	}
}

func (r *Report) renderCompetitive(b *strings.Builder) {
	if r.Matches == nil && r.Errors[SectionCompetitive] == "" {
		return
	}
	b.WriteString("## " + SectionCompetitive + "\n\n")
	if r.failed(b, SectionCompetitive) {
		return
	}
	b.WriteString("| # | Title | Price | Rating | Reviews | Features | Similarity |\n|---|---|---|---|---|---|---|\n")
	for i, m := range r.Matches {
		fmt.Fprintf(b, "| %d | %s | %s | %.1f | %d | %s | %.3f |\n",
			i+1, cell(m.Detail.Title), money(m.Product.Price), m.Product.Rating, m.Product.Reviews,
			features(m.Product), m.Score)
	}
	b.WriteString("\n")
	if r.CompetitiveNarrative != "" {
		b.WriteString("### Competitive Insights\n\n" + r.CompetitiveNarrative + "\n\n")
	}
}

func (r *Report) renderStrategy(b *strings.Builder) {
	if r.Strategy == nil && r.Evaluation == nil && r.Errors[SectionStrategy] == "" {
		return
	}
	b.WriteString("## " + SectionStrategy + "\n\n")
	if r.failed(b, SectionStrategy) {
		return
	}
	if e := r.Evaluation; e != nil {
		fmt.Fprintf(b, "Demand model holdout: MSE %.2f, R² %.2f\n\n", e.MSE, e.R2)
	}
	if e := r.Baseline; e != nil {
		fmt.Fprintf(b, "Linear baseline holdout: MSE %.2f, R² %.2f\n\n", e.MSE, e.R2)
	}
	r.chart(b, ImportanceChartFile, "Feature importance")

	s := r.Strategy
	if s == nil {
		return
	}
	fmt.Fprintf(b, "- Predicted demand: **%d reviews**\n", int(s.PredictedDemand))
	fmt.Fprintf(b, "- Segment: **%s**\n", s.Segment)
	fmt.Fprintf(b, "- Competitiveness: **%.1f%%** (top features: %s)\n", s.Competitiveness, strings.Join(s.TopFeatures, ", "))
	if band := s.OptimalPrice; band != nil {
		fmt.Fprintf(b, "- Recommended price: **%s** (%s to %s)\n", money(band.Mean), money(band.Min), money(band.Max))
	}
	fmt.Fprintf(b, "- Demand score: **%.1f%%** (alignment %.2f, price %.2f, growth %.2f)\n\n",
		s.DemandScore, s.Factors.FeatureAlignment, s.Factors.PriceOptimization, s.Factors.MarketGrowth)

	b.WriteString("### Feature Prioritization\n\n| Feature | Avg demand | Popularity |\n|---|---|---|\n")
	for _, f := range s.Priorities {
		fmt.Fprintf(b, "| %s | %s | %.1f%% |\n", f.Feature, opt(f.AvgReviews, "%.1f"), f.Popularity)
	}
	b.WriteString("\n")
	if s.BelowMarket {
		b.WriteString("Predicted demand is below the market average. Consider adjusting the price " +
			"toward high-demand products and adding the features ranked highest above.\n\n")
	} else {
		b.WriteString("Your product is already well aligned with market demand.\n\n")
	}
}

func (r *Report) renderForecast(b *strings.Builder) {
	if r.Trends == nil && r.Errors[SectionForecast] == "" {
		return
	}
	b.WriteString("## " + SectionForecast + "\n\n")
	if r.failed(b, SectionForecast) {
		return
	}
	r.chart(b, ForecastChartFile, "Predicted demand")
	fmt.Fprintf(b, "Emerging: **%s**, **%s**, **%s**\n\n",
		r.Trends.EmergingMaterial, r.Trends.EmergingNeckType, r.Trends.EmergingSleeveType)
	if len(r.TopTrending) > 0 {
		b.WriteString("### Top Trending Products\n\n| Title | Price | Features | Predicted reviews |\n|---|---|---|---|\n")
		for _, t := range r.TopTrending {
			fmt.Fprintf(b, "| %s | %s | %s | %.0f |\n",
				cell(t.Detail.Title), money(t.Product.Price), features(t.Product), t.TotalPredictedReviews)
		}
		b.WriteString("\n")
	}
}

func features(p catalog.Product) string {
	return p.Material() + ", " + p.NeckType() + ", " + p.SleeveType()
}

// cell makes s safe inside a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

// Write renders the report into dir, drawing the charts first when
// withCharts is set and cat is available. It returns the files written.
func Write(dir string, r *Report, cat *catalog.Catalog, withCharts bool) ([]string, error) {
	logger := log.GetLoggerWithName("report")
	start := time.Now()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, mlErrors.Wrapf(err, "create report directory %s", dir)
	}

	var written []string
	r.charts = make(map[string]string)
	if withCharts {
		if err := r.drawCharts(dir, cat); err != nil {
			return nil, err
		}
		for _, p := range r.charts {
			written = append(written, p)
		}
		sort.Strings(written)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(r.Render()), 0o644); err != nil {
		return nil, mlErrors.Wrapf(err, "write %s", path)
	}
	written = append(written, path)

	logger.Info("Report written",
		log.PhaseKey, log.PhaseReporting,
		log.PathKey, path,
		"files", len(written),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return written, nil
}

func (r *Report) drawCharts(dir string, cat *catalog.Catalog) error {
	add := func(file string) string {
		p := filepath.Join(dir, file)
		r.charts[file] = p
		return p
	}
	if r.Summary != nil && cat != nil {
		path := filepath.Join(dir, PriceChartFile)
		ok, err := PriceChart(cat, r.Summary.Markers, path)
		if err != nil {
			return err
		}
		if ok {
			add(PriceChartFile)
		}
		if len(r.Summary.Features) > 0 {
			if err := FeatureChart(r.Summary.Features, add(FeatureChartFile)); err != nil {
				return err
			}
		}
	}
	if len(r.Importances) > 0 {
		if err := ImportanceChart(r.Importances, add(ImportanceChartFile)); err != nil {
			return err
		}
	}
	if len(r.DailyTotals) > 0 {
		if err := ForecastChart(r.DailyTotals, add(ForecastChartFile)); err != nil {
			return err
		}
	}
	return nil
}
