// Package assemble builds the content pipeline from configuration so the
// appliance and the one-shot digest tool share the same wiring.
package assemble

import (
	"fmt"
	"log"

	"newsboard/config"
	"newsboard/content"
	"newsboard/feed"
	"newsboard/internal/openaiutil"
	"newsboard/pipeline"
	"newsboard/stats"
	"newsboard/summarize"
)

// Channels converts configured channels into the content model.
func Channels(cfg *config.Config) []content.Channel {
	out := make([]content.Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		out = append(out, content.Channel{Name: ch.Name, URL: ch.URL})
	}
	return out
}

// Fetcher builds the feed source.
func Fetcher(cfg *config.Config, logger *log.Logger) *feed.Fetcher {
	return feed.New(feed.Config{
		Timeout:        cfg.Feed.Timeout(),
		UserAgent:      cfg.Feed.UserAgent,
		SnippetChars:   cfg.Feed.SnippetChars,
		DedupeDistance: cfg.Feed.DedupeDistance,
	}, nil, logger)
}

// Transformer picks the summarizer for transform.mode.
func Transformer(cfg *config.Config, logger *log.Logger) (pipeline.Transformer, error) {
	t := cfg.Transform
	switch t.Mode {
	case config.TransformHeadlines:
		return summarize.Headlines{CharBudget: t.CharBudget}, nil
	case config.TransformOpenAI, "":
		client, err := openaiutil.New(openaiutil.Config{
			APIKey:       t.APIKey,
			Model:        t.Model,
			Endpoint:     t.Endpoint,
			MaxTokens:    t.MaxTokens,
			Temperature:  t.Temperature,
			SystemPrompt: t.SystemPrompt,
		}, nil)
		if err != nil {
			return nil, err
		}
		return summarize.NewLLM(client, summarize.Config{
			CharBudget: t.CharBudget,
			Prompt:     t.Prompt,
			Timeout:    t.Timeout(),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown transform mode %q", t.Mode)
	}
}

// Pipeline wires the fetcher and the transformer. tracker may be nil.
func Pipeline(cfg *config.Config, tracker *stats.Tracker, logger *log.Logger) (*pipeline.Pipeline, error) {
	transformer, err := Transformer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(Fetcher(cfg, logger), transformer, pipeline.Config{
		MaxItems:       cfg.Refresh.MaxItems,
		ReuseUnchanged: cfg.Refresh.ReuseUnchanged,
		Stats:          tracker,
	}, logger), nil
}
