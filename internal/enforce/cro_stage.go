package enforce

import (
	"fmt"

	"github.com/davidahmann/pdogate/internal/cro"
	"github.com/davidahmann/pdogate/internal/pdo"
	"github.com/davidahmann/pdogate/pkg/types"
)

// recordedCRO interprets the CRO members carried on the PDO. The result is
// nil when the recorded decision cannot be read.
func recordedCRO(rec pdo.RecordedCRO) (*cro.Result, []types.ValidationError) {
	if !rec.Present() {
		return nil, []types.ValidationError{invalidDecision(pdo.FieldCRODecision, "cro_decision is missing")}
	}
	decision, ok := parseRecordedDecision(rec.Decision)
	if !ok {
		return nil, []types.ValidationError{invalidDecision(pdo.FieldCRODecision, "cro_decision is not a recognised decision")}
	}
	reasons, ok := stringList(rec.Reasons)
	if !ok {
		return nil, []types.ValidationError{invalidDecision(pdo.FieldCROReasons, "cro_reasons must be a list of strings")}
	}

	result := &cro.Result{Decision: decision, Reasons: reasons}
	result.EvaluatedAt, _ = rec.EvaluatedAt.(string)
	result.PolicyVersion, _ = rec.PolicyVersion.(string)

	if decision.BlocksExecution() {
		return result, []types.ValidationError{blocksExecution(decision)}
	}
	return result, nil
}

// compareRecorded checks that a recorded decision, when present, agrees with
// the live evaluation.
func compareRecorded(rec pdo.RecordedCRO, live cro.Result) []types.ValidationError {
	if !rec.Present() {
		return nil
	}
	recorded, ok := parseRecordedDecision(rec.Decision)
	if !ok {
		return []types.ValidationError{invalidDecision(pdo.FieldCRODecision, "cro_decision is not a recognised decision")}
	}
	if recorded != live.Decision {
		return []types.ValidationError{invalidDecision(pdo.FieldCRODecision,
			fmt.Sprintf("recorded cro_decision %s does not match evaluated %s", recorded, live.Decision))}
	}
	return nil
}

func parseRecordedDecision(v any) (cro.Decision, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return cro.ParseDecision(s)
}

// stringList accepts an absent list, a decoded JSON array of strings or a
// []string.
func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case nil:
		return []string{}, true
	case []string:
		return append([]string{}, list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func invalidDecision(field, msg string) types.ValidationError {
	return types.ValidationError{Code: types.CodeCRODecisionInvalid, Field: field, Message: msg}
}

func blocksExecution(d cro.Decision) types.ValidationError {
	return types.ValidationError{
		Code:    types.CodeCROBlocksExecution,
		Field:   pdo.FieldCRODecision,
		Message: fmt.Sprintf("CRO decision %s blocks execution", d),
	}
}
