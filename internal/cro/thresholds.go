package cro

// PolicyVersion identifies the threshold table below.
const PolicyVersion = "cro_threshold_policy@v1.0.0"

// Issuer is recorded on every snapshot so a decision can be attributed.
const Issuer = "pdogate.cro"

// ThresholdPolicy is the fixed table the evaluator applies. Callers receive a
// copy; there is no way to change the table at runtime.
type ThresholdPolicy struct {
	LowMinQuality        float64 `json:"low_min_quality"`
	MediumMinQuality     float64 `json:"medium_min_quality"`
	HighMinQuality       float64 `json:"high_min_quality"`
	CriticalQualityFloor float64 `json:"critical_quality_floor"`

	MinCarrierTenureDays int `json:"min_carrier_tenure_days"`
	MinLaneHistoryDays   int `json:"min_lane_history_days"`

	// IoT telemetry is required for temperature controlled or hazmat loads
	// and for loads valued at or above IoTValueThresholdUSD.
	IoTValueThresholdUSD float64 `json:"iot_value_threshold_usd"`
}

var defaultThresholds = ThresholdPolicy{
	LowMinQuality:        0.70,
	MediumMinQuality:     0.75,
	HighMinQuality:       0.80,
	CriticalQualityFloor: 0.60,
	MinCarrierTenureDays: 90,
	MinLaneHistoryDays:   60,
	IoTValueThresholdUSD: 100_000,
}

func DefaultThresholds() ThresholdPolicy {
	return defaultThresholds
}
