// Package api provides the gRPC rule service for tagrules.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/tagrules/internal/core/db"
	"github.com/solatis/tagrules/internal/metrics"
	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

// RuleService implements RuleServiceServer.
// Thin orchestration layer delegating to the engine, reloader and store.
type RuleService struct {
	reloader     *Reloader
	store        *db.Store // nil disables match recording
	maxBatchSize int
}

// NewRuleService creates service instance with dependencies.
// store may be nil.
func NewRuleService(reloader *Reloader, store *db.Store, maxBatchSize int) (*RuleService, error) {
	if reloader == nil {
		return nil, fmt.Errorf("reloader cannot be nil")
	}
	if maxBatchSize <= 0 {
		return nil, fmt.Errorf("maxBatchSize must be positive, got %d", maxBatchSize)
	}
	return &RuleService{reloader: reloader, store: store, maxBatchSize: maxBatchSize}, nil
}

// Evaluate matches a batch of objects against the current rule set.
//
//	request:  {objects: [{id, type, attributes: {tag: value | [values]}}], diagnostics?: bool}
//	response: {ruleset_id, results: [{object_id, object_type, rules: [ids], subrules?: {id: [SRn]}}]}
func (s *RuleService) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeEvaluateRequest(in)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}
	if len(req.Objects) == 0 {
		return nil, invalidArgument("objects: at least one object required")
	}
	if len(req.Objects) > s.maxBatchSize {
		return nil, invalidArgument("objects: batch of %d exceeds limit of %d", len(req.Objects), s.maxBatchSize)
	}

	start := time.Now()
	results, err := s.reloader.Engine().EvaluateBatch(ctx, req.Objects)
	if err != nil {
		return nil, toStatus(err)
	}
	// One snapshot serves the whole batch
	rsID := results[0].RuleSetID
	metrics.EvaluationDuration.WithLabelValues(metrics.SourceRPC).Observe(time.Since(start).Seconds())
	metrics.ObjectsEvaluated.WithLabelValues(metrics.SourceRPC).Add(float64(len(results)))

	matches := 0
	for _, res := range results {
		matches += len(res.Rules)
	}
	metrics.RuleMatches.WithLabelValues(metrics.SourceRPC).Add(float64(matches))

	if s.store != nil && matches > 0 {
		if _, err := s.store.RecordMatches(ctx, results); err != nil {
			log.Error().Err(err).Str("ruleset_id", string(rsID)).Msg("Failed to record match reports")
			return nil, toStatus(fmt.Errorf("%w: %v", errStore, err))
		}
	}

	return encodeResults(rsID, results, req.Diagnostics)
}

// Validate checks one rule against the current vocabulary.
//
//	request:  {rule}
//	response: {valid, subrules?} or {valid: false, error, kind, pos?, suggestions?}
func (s *RuleService) Validate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rule := strings.TrimSpace(in.GetFields()["rule"].GetStringValue())
	rule = strings.TrimSpace(strings.TrimPrefix(rule, "-"))
	if rule == "" {
		return nil, invalidArgument("rule: required string")
	}

	rs, err := rules.Compile([]types.RuleLine{{Source: rule}}, s.reloader.Vocabulary())
	if err != nil {
		out := encodeRuleError(err)
		out["valid"] = false
		return structpb.NewStruct(out)
	}

	return structpb.NewStruct(map[string]any{
		"valid":    true,
		"subrules": rs.SubruleCount(),
	})
}

// Reload recompiles the configured sources and publishes the result.
//
//	response: {ruleset_id, rules, subrules, rejected: [{error, kind, rule_id, file, line, pos}]}
func (s *RuleService) Reload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.reloader.Reload(ctx, metrics.TriggerRPC)
	if err != nil {
		return nil, reloadStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"ruleset_id": string(res.RuleSet.ID),
		"rules":      len(res.RuleSet.Rules),
		"subrules":   res.RuleSet.SubruleCount(),
		"rejected":   encodeRejected(res.Rejected),
	})
}

// Stats describes the published rule set.
//
//	response: {ruleset_id, rules, subrules, tags, indexed_tags, eq_keys, neq_entries, prefilter, compiled_at}
func (s *RuleService) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	rs := s.reloader.Engine().Current()
	if rs == nil {
		return nil, toStatus(types.ErrNoRuleSet)
	}
	st := rs.Stats()
	tags := 0
	if vocab := s.reloader.Vocabulary(); vocab != nil {
		tags = vocab.Len()
	}
	return structpb.NewStruct(map[string]any{
		"ruleset_id":   string(rs.ID),
		"rules":        st.Rules,
		"subrules":     st.Subrules,
		"tags":         tags,
		"indexed_tags": st.Tags,
		"eq_keys":      st.EqKeys,
		"neq_entries":  st.NeqEntries,
		"prefilter":    st.Prefilter,
		"compiled_at":  rs.CompiledAt.Format(time.RFC3339),
	})
}
