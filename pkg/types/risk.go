package types

// CRORiskMetadata is the advisory risk signal supplied by the risk-scoring collaborator.
// Pointer fields distinguish "absent" from a zero value.
type CRORiskMetadata struct {
	RiskScore        *float64 `json:"risk_score,omitempty" yaml:"risk_score,omitempty"`
	RiskBand         *string  `json:"risk_band,omitempty" yaml:"risk_band,omitempty"`
	DataQualityScore *float64 `json:"data_quality_score,omitempty" yaml:"data_quality_score,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	HasCarrierProfile bool `json:"has_carrier_profile" yaml:"has_carrier_profile"`
	CarrierTenureDays int  `json:"carrier_tenure_days" yaml:"carrier_tenure_days"`
	HasLaneProfile    bool `json:"has_lane_profile" yaml:"has_lane_profile"`
	LaneHistoryDays   int  `json:"lane_history_days" yaml:"lane_history_days"`

	HasIoT         bool `json:"has_iot" yaml:"has_iot"`
	IoTDeviceCount int  `json:"iot_device_count" yaml:"iot_device_count"`

	IsTempControl bool    `json:"is_temp_control" yaml:"is_temp_control"`
	IsHazmat      bool    `json:"is_hazmat" yaml:"is_hazmat"`
	ValueUSD      float64 `json:"value_usd" yaml:"value_usd"`
}
