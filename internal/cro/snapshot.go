package cro

import (
	"strconv"

	"github.com/davidahmann/pdogate/internal/crypto"
	"github.com/davidahmann/pdogate/pkg/types"
)

// RiskPolicyDecision is the attributable record of one evaluation. DecisionID
// is the sha256 digest of the canonical form of every other member, so equal
// inputs at the same instant produce the same id.
type RiskPolicyDecision struct {
	DecisionID       string   `json:"decision_id"`
	Decision         Decision `json:"decision"`
	Reason           string   `json:"reason"`
	AppliedThreshold *float64 `json:"applied_threshold,omitempty"`
	RiskBand         string   `json:"risk_band,omitempty"`
	DataQualityScore *float64 `json:"data_quality_score,omitempty"`
	Issuer           string   `json:"issuer"`
	IssuedAt         string   `json:"issued_at"`
	PolicyVersion    string   `json:"policy_version"`
	MetadataDigest   string   `json:"metadata_digest"`
}

func buildSnapshot(v verdict, meta types.CRORiskMetadata, issuedAt string) RiskPolicyDecision {
	rec := RiskPolicyDecision{
		Decision:         v.decision,
		Reason:           v.reasons[0],
		AppliedThreshold: v.threshold,
		RiskBand:         v.band,
		DataQualityScore: cloneFloat(meta.DataQualityScore),
		Issuer:           Issuer,
		IssuedAt:         issuedAt,
		PolicyVersion:    PolicyVersion,
		MetadataDigest:   MetadataDigest(meta),
	}

	signingView := map[string]any{
		"decision":           string(rec.Decision),
		"reason":             rec.Reason,
		"applied_threshold":  decimal(rec.AppliedThreshold),
		"risk_band":          rec.RiskBand,
		"data_quality_score": decimal(rec.DataQualityScore),
		"issuer":             rec.Issuer,
		"issued_at":          rec.IssuedAt,
		"policy_version":     rec.PolicyVersion,
		"metadata_digest":    rec.MetadataDigest,
	}
	canonical, err := crypto.Canonicalize(signingView)
	if err != nil {
		panic("cro: snapshot view is not canonicalizable: " + err.Error())
	}
	rec.DecisionID = crypto.DigestWithPrefix(canonical)
	return rec
}

// MetadataDigest is the sha256 digest of the canonical form of meta. Decimal
// members are rendered as shortest round-trip strings.
func MetadataDigest(meta types.CRORiskMetadata) string {
	view := map[string]any{
		"risk_score":          decimal(meta.RiskScore),
		"risk_band":           meta.RiskBand,
		"data_quality_score":  decimal(meta.DataQualityScore),
		"confidence":          decimal(meta.Confidence),
		"has_carrier_profile": meta.HasCarrierProfile,
		"carrier_tenure_days": meta.CarrierTenureDays,
		"has_lane_profile":    meta.HasLaneProfile,
		"lane_history_days":   meta.LaneHistoryDays,
		"has_iot":             meta.HasIoT,
		"iot_device_count":    meta.IoTDeviceCount,
		"is_temp_control":     meta.IsTempControl,
		"is_hazmat":           meta.IsHazmat,
		"value_usd":           strconv.FormatFloat(meta.ValueUSD, 'f', -1, 64),
	}
	canonical, err := crypto.Canonicalize(view)
	if err != nil {
		panic("cro: metadata view is not canonicalizable: " + err.Error())
	}
	return crypto.DigestWithPrefix(canonical)
}

func decimal(f *float64) any {
	if f == nil {
		return nil
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
