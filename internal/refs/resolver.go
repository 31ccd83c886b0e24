// Package refs expands the reference tags of a document (`<include>`,
// `<url>`, `<wikipedia>`) into the context sent with a generation request.
//
// The three expansions fail differently. A missing include aborts the run.
// An unreachable URL leaves the URL markup as it was. A failed Wikipedia
// title is simply left out of the source block.
package refs

import (
	"context"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/logging"
)

// Recorder receives reference metrics. kind is "url" or "wikipedia".
type Recorder interface {
	ObserveFetch(kind, outcome string)
	ObserveCacheHit(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, string) {}
func (nopRecorder) ObserveCacheHit(string)      {}

// Config configures a Resolver.
type Config struct {
	Fetcher *Fetcher
	// WikipediaEndpoint overrides the REST base URL; WikipediaLang picks the
	// language edition when it is empty.
	WikipediaEndpoint string
	WikipediaLang     string
	// URLSource enables `<url>` expansion.
	URLSource bool
	Mode      Mode
	// CollapseWhitespace squeezes whitespace in ModeText output.
	CollapseWhitespace bool
	Logger             logging.Logger
	Recorder           Recorder
}

// Resolver expands reference tags. It holds no per-run state; the cache is
// passed to every call.
type Resolver struct {
	fetcher   *Fetcher
	wiki      *WikipediaClient
	converter *Converter
	urlSource bool
	logger    logging.Logger
	recorder  Recorder
}

// NewResolver creates a resolver.
func NewResolver(cfg Config) *Resolver {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(0, 0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeStrip
	}

	return &Resolver{
		fetcher:   fetcher,
		wiki:      NewWikipediaClient(fetcher, cfg.WikipediaEndpoint, cfg.WikipediaLang),
		converter: NewConverter(mode, cfg.CollapseWhitespace),
		urlSource: cfg.URLSource,
		logger:    logger.WithComponent("refs"),
		recorder:  recorder,
	}
}

// Fetcher returns the HTTP fetcher shared with other components.
func (r *Resolver) Fetcher() *Fetcher {
	return r.fetcher
}

// Resolve runs include, URL and Wikipedia expansion on text, in that order.
// Include failures are returned; a failed URL fetch leaves every url tag
// unexpanded.
func (r *Resolver) Resolve(ctx context.Context, text, baseDir string, cache Cache) (string, error) {
	expanded, err := ExpandIncludes(text, baseDir)
	if err != nil {
		return "", err
	}

	if r.urlSource {
		withURLs, err := r.ExpandURLs(ctx, expanded, cache)
		switch {
		case err == nil:
		case tagerrors.IsFetchError(err):
			r.logger.Warn(ctx, err, "URL expansion abandoned, keeping original markup")
		default:
			return "", err
		}
		expanded = withURLs
	}

	expanded, _ = r.ExpandWikipedia(ctx, expanded, cache)

	return expanded, nil
}
