package api

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

// evaluateRequest is the decoded form of an Evaluate request:
// {objects: [{id, type, attributes: {tag: value | [values]}}], diagnostics: bool}
type evaluateRequest struct {
	Objects     []types.ObjectRecord
	Diagnostics bool
}

func decodeEvaluateRequest(in *structpb.Struct) (*evaluateRequest, error) {
	fields := in.GetFields()
	req := &evaluateRequest{Diagnostics: fields["diagnostics"].GetBoolValue()}

	list := fields["objects"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("objects: expected a list")
	}
	for i, v := range list.GetValues() {
		obj, err := decodeObject(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		req.Objects = append(req.Objects, obj)
	}
	return req, nil
}

func decodeObject(s *structpb.Struct) (types.ObjectRecord, error) {
	if s == nil {
		return types.ObjectRecord{}, fmt.Errorf("expected an object")
	}
	fields := s.GetFields()
	obj := types.ObjectRecord{
		ID:         fields["id"].GetStringValue(),
		Type:       fields["type"].GetStringValue(),
		Attributes: make(map[string][]string),
	}
	if obj.ID == "" {
		return obj, fmt.Errorf("id: required string")
	}

	attrs := fields["attributes"].GetStructValue()
	for tag, v := range attrs.GetFields() {
		values, err := stringValues(v)
		if err != nil {
			return obj, fmt.Errorf("attributes.%s: %w", tag, err)
		}
		if len(values) > types.MaxAttributeValues {
			return obj, fmt.Errorf("attributes.%s: %d values exceeds limit of %d", tag, len(values), types.MaxAttributeValues)
		}
		obj.Attributes[tag] = values
	}
	return obj, nil
}

func stringValues(v *structpb.Value) ([]string, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return []string{k.StringValue}, nil
	case *structpb.Value_ListValue:
		out := make([]string, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			s, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("expected string values")
			}
			out = append(out, s.StringValue)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or a list of strings")
	}
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func encodeResults(rs types.RuleSetID, results []rules.MatchResult, diagnostics bool) (*structpb.Struct, error) {
	items := make([]any, len(results))
	for i, res := range results {
		item := map[string]any{
			"object_id":   res.ObjectID,
			"object_type": res.ObjectType,
			"rules":       stringList(res.RuleIDs()),
		}
		if diagnostics {
			subrules := make(map[string]any, len(res.Rules))
			for _, m := range res.Rules {
				subrules[m.RuleID] = stringList(m.Subrules)
			}
			item["subrules"] = subrules
		}
		items[i] = item
	}
	return structpb.NewStruct(map[string]any{
		"ruleset_id": string(rs),
		"results":    items,
	})
}

func encodeRejected(errs []error) []any {
	out := make([]any, len(errs))
	for i, err := range errs {
		out[i] = encodeRuleError(err)
	}
	return out
}

// encodeRuleError renders err as {error, kind, rule_id?, file?, line?, pos?, token?, suggestions?}.
func encodeRuleError(err error) map[string]any {
	m := map[string]any{
		"error": err.Error(),
		"kind":  types.KindName(err),
	}
	var re *types.RuleError
	if !errors.As(err, &re) {
		return m
	}
	if re.RuleID != "" {
		m["rule_id"] = re.RuleID
	}
	if re.File != "" {
		m["file"] = re.File
	}
	if re.Line > 0 {
		m["line"] = re.Line
	}
	if re.Pos > 0 {
		m["pos"] = re.Pos
	}
	if re.Token != "" {
		m["token"] = re.Token
	}
	if len(re.Suggestions) > 0 {
		suggestions := append([]string(nil), re.Suggestions...)
		sort.Strings(suggestions)
		m["suggestions"] = stringList(suggestions)
	}
	return m
}
