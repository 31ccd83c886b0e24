// Package pipeline runs the tag-resolution pipeline on one document: rewrite
// aliases, locate the directive, expand references, compose and send the
// generation request, then splice the sanitized answer back and record it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/tagwriting/internal/config"
	"github.com/conneroisu/tagwriting/internal/document"
	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/generate"
	"github.com/conneroisu/tagwriting/internal/history"
	"github.com/conneroisu/tagwriting/internal/hook"
	"github.com/conneroisu/tagwriting/internal/logging"
	"github.com/conneroisu/tagwriting/internal/prompt"
	"github.com/conneroisu/tagwriting/internal/refs"
	"github.com/conneroisu/tagwriting/internal/tags"
)

// Metrics receives run-level measurements.
type Metrics interface {
	refs.Recorder
	ObserveRun(outcome string, d time.Duration)
	ObserveRewrite()
	ObserveGeneration(directive string, d time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(string, string)                    {}
func (nopMetrics) ObserveCacheHit(string)                         {}
func (nopMetrics) ObserveRun(string, time.Duration)               {}
func (nopMetrics) ObserveRewrite()                                {}
func (nopMetrics) ObserveGeneration(string, time.Duration, error) {}

// Outcomes passed to Metrics.ObserveRun.
const (
	outcomeSuccess     = "success"
	outcomeNoDirective = "no_directive"
	outcomeRewritten   = "rewritten"
	outcomeDuplicate   = "duplicate"
	outcomeFailed      = "failed"
)

// Deps are the collaborators of a Pipeline. Only Generator is required.
type Deps struct {
	Generator generate.Generator
	Resolver  *refs.Resolver
	Hook      *hook.Runner
	Logger    logging.Logger
	Metrics   Metrics
	// Cache, when set, is shared across runs. Otherwise each run gets a
	// fresh RunCache.
	Cache refs.Cache
	// Now stamps history entries.
	Now func() time.Time
}

// Pipeline processes documents with one configuration.
type Pipeline struct {
	cfg       *config.Config
	rules     []tags.Rule
	aliases   []string
	generator generate.Generator
	resolver  *refs.Resolver
	hook      *hook.Runner
	history   *history.Recorder
	logger    logging.Logger
	metrics   Metrics
	cache     refs.Cache
	now       func() time.Time
}

// New creates a pipeline.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		return nil, tagerrors.NewInternalError("NIL_CONFIG", "pipeline needs a configuration", nil)
	}
	if deps.Generator == nil {
		return nil, tagerrors.NewInternalError("NIL_GENERATOR", "pipeline needs a generator", nil)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	resolver := deps.Resolver
	if resolver == nil {
		mode, err := refs.ParseMode(cfg.Options.URLMode)
		if err != nil {
			return nil, tagerrors.WrapConfig(err, tagerrors.CodeConfigRead, "invalid url mode")
		}
		resolver = refs.NewResolver(refs.Config{
			Fetcher:            refs.NewFetcher(cfg.Options.FetchTimeout, 0),
			WikipediaEndpoint:  cfg.Options.WikipediaEndpoint,
			WikipediaLang:      cfg.Options.WikipediaLang,
			URLSource:          cfg.Options.URLSource,
			Mode:               mode,
			CollapseWhitespace: cfg.Options.URLStrip,
			Logger:             logger,
			Recorder:           metrics,
		})
	}

	hookRunner := deps.Hook
	if hookRunner == nil {
		hookRunner = hook.NewRunner(cfg.Options.HookTimeout, logger)
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	rules := cfg.Rules()
	return &Pipeline{
		cfg:       cfg,
		rules:     rules,
		aliases:   tags.RuleTags(rules),
		generator: deps.Generator,
		resolver:  resolver,
		hook:      hookRunner,
		history:   history.NewRecorder(cfg.History.File, cfg.History.Template),
		logger:    logger.WithComponent("pipeline"),
		metrics:   metrics,
		cache:     deps.Cache,
		now:       now,
	}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// IsHistoryFile reports whether path is a history file this pipeline
// writes, which must never be processed itself.
func (p *Pipeline) IsHistoryFile(path string) bool {
	return p.history.IsHistoryFile(path)
}

// Result describes one run.
type Result struct {
	RunID string
	Path  string
	// State is the terminal state of the run.
	State State
	// Visited lists every state entered, in order, starting with Idle.
	Visited []State

	Rewritten   bool
	Rule        tags.Rule
	// Merged is set when the response replaced a sentinel already in the
	// document instead of the directive.
	Merged      bool
	Directive   tags.Tag
	Prompt      string
	Response    string
	HistoryFile string
	Duration    time.Duration
}

// run carries the per-run state.
type run struct {
	res    *Result
	logger logging.Logger
	cache  refs.Cache
}

func (r *run) enter(ctx context.Context, s State) {
	from := r.res.State
	if !CanTransition(from, s) {
		r.logger.Error(ctx, nil, "Illegal state transition", "from", from.String(), "to", s.String())
	}
	r.res.State = s
	r.res.Visited = append(r.res.Visited, s)
	r.logger.Debug(ctx, "State changed", "from", from.String(), "to", s.String())
}

func (r *run) fail(ctx context.Context, err error) (*Result, error) {
	r.enter(ctx, Failed)
	return r.res, err
}

// Run processes the document at path once. A run that applies a rewrite
// rule persists it and stops there; the directive is resolved by the next
// run. Failures are returned as *errors.TagwritingError; the document is
// only written by the rewrite and persist steps, so a failed run leaves no
// partial splice behind.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	r := &run{
		res:    &Result{RunID: runID, Path: path, State: Idle, Visited: []State{Idle}},
		logger: p.logger.With("run_id", runID, "file", path),
		cache:  p.cache,
	}
	if r.cache == nil {
		r.cache = refs.NewRunCache()
	}

	res, err := p.run(ctx, r)
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		p.metrics.ObserveRun(outcomeFailed, res.Duration)
		r.logger.Error(ctx, err, "Run failed", "state", lastBeforeFailure(res).String())
	case res.State == NoDirectiveFound:
		p.metrics.ObserveRun(outcomeNoDirective, res.Duration)
		r.logger.Debug(ctx, "No directive found")
	case res.State == Rewritten:
		p.metrics.ObserveRun(outcomeRewritten, res.Duration)
	case res.State == DuplicateSkipped:
		p.metrics.ObserveRun(outcomeDuplicate, res.Duration)
	default:
		p.metrics.ObserveRun(outcomeSuccess, res.Duration)
		r.logger.Info(ctx, "Directive resolved",
			"directive", res.Directive.Name,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	return res, err
}

func lastBeforeFailure(res *Result) State {
	if n := len(res.Visited); n >= 2 && res.State == Failed {
		return res.Visited[n-2]
	}
	return res.State
}

func (p *Pipeline) run(ctx context.Context, r *run) (*Result, error) {
	doc, err := document.Load(r.res.Path)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.res.Path = doc.Path
	r.enter(ctx, Loaded)

	if rewritten, rule, ok := tags.Rewrite(doc.Text, p.rules); ok {
		doc.Text = rewritten
		if err := doc.Save(); err != nil {
			return r.fail(ctx, err)
		}
		r.res.Rewritten = true
		r.res.Rule = rule
		p.metrics.ObserveRewrite()
		r.logger.Info(ctx, "Rewrote alias tag", "tag", rule.Tag)
		r.enter(ctx, Rewritten)
		return r.res, nil
	}

	directive, ok := tags.LocateDirective(doc.Text)
	if !ok {
		r.enter(ctx, NoDirectiveFound)
		return r.res, nil
	}
	r.res.Directive = directive
	r.enter(ctx, DirectiveLocated)

	if p.cfg.Options.DuplicatePrompt {
		seen, err := p.history.Recorded(doc.Path, directive.Inner)
		if err != nil {
			return r.fail(ctx, err)
		}
		if seen {
			r.logger.Warn(ctx, nil, "Prompt already answered, skipping", "prompt", logging.Truncate(directive.Inner, 80))
			r.enter(ctx, DuplicateSkipped)
			return r.res, nil
		}
	}

	contextText := prompt.ReplaceWithSentinel(doc.Text, directive)
	mergeAt, leftover := tags.LeftoverSentinel(doc.Text, directive)
	switch {
	case leftover && p.cfg.Options.SimpleMerge:
		r.res.Merged = true
		contextText = prompt.RemoveDirective(doc.Text, directive)
		r.logger.Info(ctx, "Response goes to the sentinel already in the document", "offset", mergeAt)
	case leftover:
		r.logger.Warn(ctx, nil, "Document already contains the sentinel", "sentinel", tags.Sentinel)
	}

	if directive.Name == tags.Prompt {
		contextText, err = p.resolver.Resolve(ctx, contextText, doc.Dir(), r.cache)
		if err != nil {
			return r.fail(ctx, err)
		}
	}
	r.enter(ctx, ReferencesExpanded)

	rules := prompt.BuildRules(ctx, directive.Attrs, p.cfg.Attrs, r.logger)
	userPrompt := prompt.Compose(p.cfg.Prompt, prompt.Input{
		Directive: directive,
		Context:   contextText,
		Rules:     rules,
	})
	r.res.Prompt = userPrompt
	r.enter(ctx, Composed)

	response, err := p.generate(ctx, r, directive.Name, userPrompt)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.enter(ctx, Generated)

	clean := tags.Sanitize(response, p.aliases...)
	r.res.Response = clean
	r.enter(ctx, Sanitized)

	if r.res.Merged {
		doc.Text = document.Merge(doc.Text, directive, mergeAt, clean)
	} else {
		doc.Text = document.Splice(doc.Text, directive, clean)
	}
	if err := doc.Save(); err != nil {
		return r.fail(ctx, err)
	}
	r.enter(ctx, Persisted)

	historyFile, err := p.history.Append(doc.Path, history.Entry{
		Prompt:    directive.Inner,
		Result:    clean,
		Timestamp: p.now(),
	})
	r.res.HistoryFile = historyFile
	if err != nil {
		return r.fail(ctx, err)
	}
	r.enter(ctx, HistoryRecorded)

	if cmd := p.cfg.Hook.TextGenerateEnd; cmd != "" {
		if err := p.hook.Run(ctx, cmd, doc.Path); err != nil {
			r.logger.Warn(ctx, err, "Hook failed")
		}
	}

	return r.res, nil
}

func (p *Pipeline) generate(ctx context.Context, r *run, directive, userPrompt string) (string, error) {
	timeout := p.cfg.Options.GenerateTimeout
	if timeout <= 0 {
		timeout = 100 * time.Second
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	perf := logging.StartOperation(r.logger, "generate")
	response, err := p.generator.Generate(gctx, generate.Request{
		System: p.cfg.SystemPrompt,
		User:   userPrompt,
	})
	p.metrics.ObserveGeneration(directive, perf.Elapsed(), err)
	if err != nil {
		perf.EndWithError(ctx, err)
		if !tagerrors.IsGenerationError(err) {
			err = tagerrors.WrapGeneration(err, tagerrors.CodeRequestFailed, fmt.Sprintf("%s generation failed", directive))
		}
		return "", err
	}
	perf.End(ctx)

	return response, nil
}
