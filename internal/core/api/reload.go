package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solatis/tagrules/internal/core/db"
	"github.com/solatis/tagrules/internal/loader"
	"github.com/solatis/tagrules/internal/metrics"
	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

// Source supplies the vocabulary and rule lines a reload compiles.
type Source interface {
	Load(ctx context.Context) (*types.Vocabulary, []types.RuleLine, error)
	String() string
}

// FileSource reads .tags and .rules files from a directory.
type FileSource struct {
	Dir       string
	TagsGlob  string
	RulesGlob string
}

// Load reads every matching tag and rule file.
func (f FileSource) Load(ctx context.Context) (*types.Vocabulary, []types.RuleLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	src, err := loader.Load(f.Dir, f.TagsGlob, f.RulesGlob)
	if err != nil {
		return nil, nil, err
	}
	return src.Vocabulary, src.Rules, nil
}

func (f FileSource) String() string {
	return "files:" + f.Dir
}

// StoreSource reads the vocabulary and rules persisted by import.
type StoreSource struct {
	Store *db.Store
}

// Load reads the stored vocabulary and rules.
func (s StoreSource) Load(ctx context.Context) (*types.Vocabulary, []types.RuleLine, error) {
	vocab, err := s.Store.LoadVocabulary(ctx)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.Store.LoadRules(ctx)
	if err != nil {
		return nil, nil, err
	}
	return vocab, lines, nil
}

func (s StoreSource) String() string {
	return "database"
}

// ReloadResult describes a published rule set.
type ReloadResult struct {
	RuleSet  *rules.RuleSet
	Previous *rules.RuleSet // nil on first load
	Rejected []error
}

// Reloader compiles rule sources and publishes the result to an Engine.
// Reloads are serialised; a failed reload leaves the published set in place.
type Reloader struct {
	engine  *rules.Engine
	source  Source
	lenient bool
	opts    []rules.CompileOption

	mu    sync.Mutex
	vocab atomic.Pointer[types.Vocabulary]
}

// NewReloader creates a reloader. With lenient, invalid rules are rejected
// and the rest published; otherwise any invalid rule fails the reload.
func NewReloader(engine *rules.Engine, source Source, lenient bool, opts ...rules.CompileOption) *Reloader {
	return &Reloader{engine: engine, source: source, lenient: lenient, opts: opts}
}

// Vocabulary returns the vocabulary of the last successful reload, or nil.
func (r *Reloader) Vocabulary() *types.Vocabulary {
	return r.vocab.Load()
}

// Engine returns the engine this reloader publishes to.
func (r *Reloader) Engine() *rules.Engine {
	return r.engine
}

// Reload loads, compiles and publishes. trigger labels metrics and logs.
func (r *Reloader) Reload(ctx context.Context, trigger string) (*ReloadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vocab, lines, err := r.source.Load(ctx)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues(trigger, metrics.ResultError).Inc()
		log.Error().Err(err).Str("trigger", trigger).Str("source", r.source.String()).Msg("Failed to load rule sources")
		return nil, fmt.Errorf("failed to load rule sources: %w", err)
	}

	start := time.Now()
	var (
		rs       *rules.RuleSet
		rejected []error
	)
	if r.lenient {
		rs, rejected, err = rules.CompileLenient(lines, vocab, r.opts...)
	} else {
		rs, err = rules.Compile(lines, vocab, r.opts...)
	}
	metrics.CompileDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompileTotal.WithLabelValues(metrics.ResultError).Inc()
		metrics.ReloadsTotal.WithLabelValues(trigger, metrics.ResultError).Inc()
		logRuleError(err, "Rule set compilation failed")
		return nil, err
	}
	metrics.CompileTotal.WithLabelValues(metrics.ResultOK).Inc()

	for _, e := range rejected {
		metrics.RulesRejected.WithLabelValues(types.KindName(e)).Inc()
		logRuleError(e, "Rule rejected")
	}

	// Vocabulary first: a reader that sees rs also sees the vocabulary it was compiled against
	r.vocab.Store(vocab)
	prev := r.engine.Swap(rs)

	metrics.RuleSetRules.Set(float64(len(rs.Rules)))
	metrics.RuleSetSubrules.Set(float64(rs.SubruleCount()))
	metrics.ReloadsTotal.WithLabelValues(trigger, metrics.ResultOK).Inc()

	event := log.Info().
		Str("trigger", trigger).
		Str("ruleset_id", string(rs.ID)).
		Int("rules", len(rs.Rules)).
		Int("subrules", rs.SubruleCount()).
		Int("rejected", len(rejected)).
		Dur("compile_time", time.Since(start))
	if prev != nil {
		event = event.Str("previous_ruleset_id", string(prev.ID))
	}
	event.Msg("Rule set published")

	return &ReloadResult{RuleSet: rs, Previous: prev, Rejected: rejected}, nil
}

func logRuleError(err error, msg string) {
	event := log.Warn().Err(err).Str("kind", types.KindName(err))
	var re *types.RuleError
	if errors.As(err, &re) {
		event = event.Str("rule_id", re.RuleID).Str("file", re.File).Int("line", re.Line)
	}
	event.Msg(msg)
}
