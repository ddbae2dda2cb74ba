// Command marketlens analyzes an apparel catalog against a hypothetical
// product and writes a markdown report with charts.
//
//	marketlens -price 499 -material Cotton -neck "Round Neck" -sleeve "Short Sleeve" -view all
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ezoic/marketlens/internal/catalog"
	"github.com/ezoic/marketlens/internal/config"
	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/forecast"
	"github.com/ezoic/marketlens/internal/insights"
	"github.com/ezoic/marketlens/internal/narrative"
	"github.com/ezoic/marketlens/internal/query"
	"github.com/ezoic/marketlens/internal/report"
	"github.com/ezoic/marketlens/internal/similarity"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// Views selectable with -view.
const (
	ViewMarket      = "market"
	ViewCompetitive = "competitive"
	ViewStrategy    = "strategy"
	ViewForecast    = "forecast"
	ViewAll         = "all"
)

var allViews = []string{ViewMarket, ViewCompetitive, ViewStrategy, ViewForecast}

const (
	exitData  = 1
	exitUsage = 2
)

type options struct {
	configPath string
	views      map[string]bool
	product    query.Product
	outDir     string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("marketlens", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		o      options
		view   string
		growth string
	)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (default $"+config.PathEnvVar+" or "+config.DefaultPath+")")
	fs.StringVar(&view, "view", ViewAll, "comma separated views: market, competitive, strategy, forecast or all")
	fs.Float64Var(&o.product.Price, "price", 500, "product price in INR")
	fs.StringVar(&o.product.Material, "material", catalog.MaterialCotton, "Cotton or Polyester")
	fs.StringVar(&o.product.NeckType, "neck", catalog.NeckRound, `"Round Neck" or "Polo Neck"`)
	fs.StringVar(&o.product.SleeveType, "sleeve", catalog.SleeveShort, `"Short Sleeve" or "Long Sleeve"`)
	fs.StringVar(&growth, "growth", "", "review growth rate (unset uses the view's default)")
	fs.StringVar(&o.outDir, "out", "", "report directory (overrides report.output_dir)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if growth != "" {
		var g float64
		if _, err := fmt.Sscanf(growth, "%g", &g); err != nil {
			return nil, mlErrors.NewValueErrorf("marketlens", "invalid -growth %q", growth)
		}
		o.product = o.product.WithGrowthRate(g)
	}

	views, err := parseViews(view)
	if err != nil {
		return nil, err
	}
	o.views = views
	return &o, nil
}

func parseViews(s string) (map[string]bool, error) {
	views := make(map[string]bool)
	for _, v := range strings.Split(s, ",") {
		v = strings.ToLower(strings.TrimSpace(v))
		switch v {
		case ViewAll:
			for _, name := range allViews {
				views[name] = true
			}
		case ViewMarket, ViewCompetitive, ViewStrategy, ViewForecast:
			views[v] = true
		default:
			return nil, mlErrors.NewValueErrorf("marketlens", "unknown view %q", v)
		}
	}
	return views, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if !mlErrors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}
	log.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := log.GetLoggerWithName("marketlens")

	if err := opts.product.Validate(cfg.QueryBounds()); err != nil {
		log.LogError(err, "Invalid product")
		return exitUsage
	}

	cat, err := catalog.NewLoader().Load(cfg.Data.CleanPath, cfg.Data.FullPath)
	if err != nil {
		log.LogError(err, "Catalog load failed", log.PathKey, cfg.Data.CleanPath)
		return exitData
	}

	summarizer, err := cfg.Summarizer()
	if err != nil {
		logger.Warn("Narrative service unavailable", log.ErrorKey, err.Error())
		summarizer = narrative.Disabled{}
	}

	r := buildReport(context.Background(), cfg, cat, opts, summarizer, time.Now())

	dir := cfg.Report.OutputDir
	if opts.outDir != "" {
		dir = opts.outDir
	}
	files, err := report.Write(dir, r, cat, cfg.Report.Charts)
	if err != nil {
		log.LogError(err, "Report write failed", log.PathKey, dir)
		return exitData
	}
	for _, f := range files {
		fmt.Fprintln(stdout, f)
	}
	return 0
}

// buildReport computes every selected view. A failing view is recorded on
// the report and the others still run.
func buildReport(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, opts *options,
	summarizer narrative.Summarizer, now time.Time) *report.Report {
	r := &report.Report{GeneratedAt: now, Query: opts.product}

	if opts.views[ViewMarket] {
		if err := marketView(r, cat); err != nil {
			r.Fail(report.SectionMarket, err)
		}
	}
	if opts.views[ViewCompetitive] {
		if err := competitiveView(r, cfg, cat); err != nil {
			r.Fail(report.SectionCompetitive, err)
		}
	}
	if opts.views[ViewStrategy] || opts.views[ViewForecast] {
		m, holdout, trainErr := demand.TrainOrLoad(cat, cfg.DemandOptions())
		if trainErr != nil {
			log.LogError(trainErr, "Demand model unavailable")
		}
		if opts.views[ViewStrategy] {
			err := trainErr
			if err == nil {
				err = strategyView(r, cfg, cat, m, holdout)
			}
			if err != nil {
				r.Fail(report.SectionStrategy, err)
			}
		}
		if opts.views[ViewForecast] {
			err := trainErr
			if err == nil {
				err = forecastView(r, cfg, cat, m, now)
			}
			if err != nil {
				r.Fail(report.SectionForecast, err)
			}
		}
	}

	narrate(ctx, cfg, r, summarizer)
	return r
}

func marketView(r *report.Report, cat *catalog.Catalog) error {
	summary, err := insights.Summarize(cat)
	if err != nil {
		return err
	}
	segs, err := insights.PriceSegments(cat)
	if err != nil {
		return err
	}
	r.Summary, r.Segments = summary, segs
	return nil
}

func competitiveView(r *report.Report, cfg *config.Config, cat *catalog.Catalog) error {
	engine, err := similarity.NewEngine(cat)
	if err != nil {
		return err
	}
	matches, err := engine.TopK(r.Query, cfg.Similarity.TopK)
	if err != nil {
		return err
	}
	r.Matches, err = similarity.SortMatches(matches, similarity.SortKey(cfg.Similarity.SortBy))
	return err
}

func strategyView(r *report.Report, cfg *config.Config, cat *catalog.Catalog, m *demand.Model, h *demand.Holdout) error {
	if h != nil && h.Len() > 0 {
		eval, err := m.Evaluate(h)
		if err != nil {
			return err
		}
		r.Evaluation = &eval
		if base, err := demand.Baseline(cat, cfg.DemandOptions()); err != nil {
			log.LogError(err, "Linear baseline unavailable")
		} else {
			r.Baseline = &base
		}
	}
	imps, err := m.FeatureImportances()
	if err != nil {
		return err
	}
	s, err := insights.Strategy(cat, r.Query, m)
	if err != nil {
		return err
	}
	r.Importances, r.Strategy = imps, s
	return nil
}

func forecastView(r *report.Report, cfg *config.Config, cat *catalog.Catalog, m *demand.Model, now time.Time) error {
	records, err := forecast.Generate(cat, m, cfg.ForecastOptions(now))
	if err != nil {
		return err
	}
	top, err := forecast.TopTrending(cat, records, cfg.Forecast.TopTrending)
	if err != nil {
		return err
	}
	trends := forecast.Trends(records)
	r.Trends, r.TopTrending, r.DailyTotals = &trends, top, forecast.DailyTotals(records)
	return nil
}

// narrate fills the narrative sections of the views that were computed. The
// two calls are independent and share one deadline.
func narrate(ctx context.Context, cfg *config.Config, r *report.Report, s narrative.Summarizer) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Narrative.Timeout)
	defer cancel()

	var g errgroup.Group
	if r.Summary != nil {
		g.Go(func() error {
			r.MarketNarrative = narrative.Section(ctx, "Market Insights", func(ctx context.Context) (string, error) {
				return narrative.MarketInsights(ctx, s, r.Summary)
			})
			return nil
		})
	}
	if len(r.Matches) > 0 {
		g.Go(func() error {
			r.CompetitiveNarrative = narrative.Section(ctx, "Competitive Insights", func(ctx context.Context) (string, error) {
				return narrative.CompetitiveAnalysis(ctx, s, r.Query, r.Matches)
			})
			return nil
		})
	}
	_ = g.Wait()
}
