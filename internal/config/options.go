package config

import (
	"time"

	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/forecast"
	"github.com/ezoic/marketlens/internal/narrative"
	"github.com/ezoic/marketlens/internal/query"
)

// DemandOptions returns the training options of the model section.
func (c *Config) DemandOptions() demand.Options {
	return demand.Options{
		ArtifactPath: c.Model.ArtifactPath,
		TestSize:     c.Model.TestSize,
		SplitSeed:    c.Model.SplitSeed,
		NEstimators:  c.Model.NEstimators,
		LearningRate: c.Model.LearningRate,
		MaxDepth:     c.Model.MaxDepth,
		RandomState:  c.Model.RandomState,
	}
}

// ForecastOptions returns the forecast section starting at start.
func (c *Config) ForecastOptions(start time.Time) forecast.Options {
	return forecast.Options{
		SampleSize:  c.Forecast.SampleSize,
		HorizonDays: c.Forecast.HorizonDays,
		Seed:        c.Forecast.Seed,
		Start:       start,
	}
}

// QueryBounds returns the accepted user price range.
func (c *Config) QueryBounds() query.Bounds {
	return query.Bounds{MinPrice: c.Query.MinPrice, MaxPrice: c.Query.MaxPrice}
}

// Summarizer returns the configured narrative service, or
// narrative.Disabled when it is switched off or has no key.
func (c *Config) Summarizer() (narrative.Summarizer, error) {
	if !c.Narrative.Active() {
		return narrative.Disabled{}, nil
	}
	client, err := narrative.NewChatClient(narrative.ClientConfig{
		BaseURL:         c.Narrative.BaseURL,
		APIKey:          c.Narrative.APIKey,
		Model:           c.Narrative.Model,
		Temperature:     c.Narrative.Temperature,
		Timeout:         c.Narrative.Timeout,
		BreakerFailures: c.Narrative.BreakerFailures,
		BreakerCooldown: c.Narrative.BreakerCooldown,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
