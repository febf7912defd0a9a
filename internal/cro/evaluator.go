package cro

import (
	"math"
	"time"

	"github.com/davidahmann/pdogate/pkg/types"
)

// Result is the evaluator's verdict together with the attributable snapshot
// and a copy of the metadata it was computed from. Snapshot is nil when the
// result was read back from a PDO instead of evaluated, and so is
// MetadataSnapshot.
type Result struct {
	Decision         Decision               `json:"decision"`
	Reasons          []string               `json:"reasons"`
	Snapshot         *RiskPolicyDecision    `json:"snapshot,omitempty"`
	EvaluatedAt      string                 `json:"evaluated_at"`
	PolicyVersion    string                 `json:"policy_version"`
	OriginalRiskBand string                 `json:"original_risk_band,omitempty"`
	MetadataSnapshot *types.CRORiskMetadata `json:"metadata_snapshot,omitempty"`
}

func (r Result) BlocksExecution() bool {
	return r.Decision.BlocksExecution()
}

type Evaluator struct {
	thresholds ThresholdPolicy
	now        func() time.Time
}

// NewEvaluator returns an evaluator over the default threshold table. A nil
// clock uses time.Now.
func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{thresholds: DefaultThresholds(), now: now}
}

// Evaluate applies the threshold table to meta. A nil meta is treated as
// missing metadata.
func Evaluate(meta *types.CRORiskMetadata) Result {
	return NewEvaluator(nil).Evaluate(meta)
}

func (e *Evaluator) Evaluate(meta *types.CRORiskMetadata) Result {
	snapshot := cloneMetadata(meta)
	v := e.decide(snapshot)

	evaluatedAt := e.now().UTC().Format(time.RFC3339Nano)
	res := Result{
		Decision:         v.decision,
		Reasons:          v.reasons,
		EvaluatedAt:      evaluatedAt,
		PolicyVersion:    PolicyVersion,
		MetadataSnapshot: &snapshot,
	}
	if snapshot.RiskBand != nil {
		res.OriginalRiskBand = *snapshot.RiskBand
	}
	decision := buildSnapshot(v, snapshot, evaluatedAt)
	res.Snapshot = &decision
	return res
}

type verdict struct {
	decision  Decision
	reasons   []string
	threshold *float64
	band      string
}

func (e *Evaluator) decide(meta types.CRORiskMetadata) verdict {
	t := e.thresholds

	if meta.RiskBand == nil || meta.DataQualityScore == nil {
		return verdict{decision: DecisionEscalate, reasons: []string{ReasonMissingRiskMetadata}}
	}
	quality := *meta.DataQualityScore
	rawBand := *meta.RiskBand
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return verdict{decision: DecisionEscalate, reasons: []string{ReasonInvalidDataQuality}, band: rawBand}
	}
	if quality < t.CriticalQualityFloor {
		return verdict{decision: DecisionEscalate, reasons: []string{ReasonDataQualityCritical}, threshold: ptr(t.CriticalQualityFloor), band: rawBand}
	}

	band, ok := ParseBand(rawBand)
	if !ok {
		return verdict{decision: DecisionEscalate, reasons: []string{ReasonUnrecognizedRiskBand}, band: rawBand}
	}

	switch band {
	case BandCritical:
		return verdict{decision: DecisionEscalate, reasons: []string{ReasonCriticalRiskBand}, band: string(band)}
	case BandHigh:
		v := verdict{threshold: ptr(t.HighMinQuality), band: string(band)}
		if quality >= t.HighMinQuality {
			v.decision, v.reasons = DecisionHold, []string{ReasonHighRiskHold}
		} else {
			v.decision, v.reasons = DecisionEscalate, []string{ReasonHighRiskLowQuality}
		}
		return v
	case BandMedium:
		v := verdict{threshold: ptr(t.MediumMinQuality), band: string(band)}
		if quality >= t.MediumMinQuality {
			v.decision = DecisionAllowWithConstraints
			v.reasons = append([]string{ReasonMediumRiskConstraint}, e.constraints(meta)...)
		} else {
			v.decision, v.reasons = DecisionHold, []string{ReasonMediumRiskLowQuality}
		}
		return v
	case BandLow:
		v := verdict{threshold: ptr(t.LowMinQuality), band: string(band)}
		if quality >= t.LowMinQuality {
			v.decision, v.reasons = DecisionAllow, []string{ReasonLowRiskAllow}
		} else {
			v.decision, v.reasons = DecisionAllowWithConstraints, []string{ReasonLowRiskLowQuality}
		}
		return v
	default:
		panic("cro: ParseBand returned an unknown band")
	}
}

// constraints lists the operational conditions attached to a constrained
// MEDIUM band approval. A missing profile counts as new.
func (e *Evaluator) constraints(meta types.CRORiskMetadata) []string {
	t := e.thresholds
	var out []string
	if !meta.HasCarrierProfile || meta.CarrierTenureDays < t.MinCarrierTenureDays {
		out = append(out, ReasonNewCarrier)
	}
	if !meta.HasLaneProfile || meta.LaneHistoryDays < t.MinLaneHistoryDays {
		out = append(out, ReasonNewLane)
	}
	iotRequired := meta.IsTempControl || meta.IsHazmat || meta.ValueUSD >= t.IoTValueThresholdUSD
	if iotRequired && (!meta.HasIoT || meta.IoTDeviceCount <= 0) {
		out = append(out, ReasonMissingIoT)
	}
	return out
}

func cloneMetadata(meta *types.CRORiskMetadata) types.CRORiskMetadata {
	if meta == nil {
		return types.CRORiskMetadata{}
	}
	out := *meta
	out.RiskScore = cloneFloat(meta.RiskScore)
	out.DataQualityScore = cloneFloat(meta.DataQualityScore)
	out.Confidence = cloneFloat(meta.Confidence)
	if meta.RiskBand != nil {
		band := *meta.RiskBand
		out.RiskBand = &band
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	return ptr(*f)
}

func ptr(f float64) *float64 {
	return &f
}
