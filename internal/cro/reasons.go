package cro

// Primary reason codes. Exactly one is the first entry of Result.Reasons.
const (
	ReasonMissingRiskMetadata  = "MISSING_RISK_METADATA"
	ReasonInvalidDataQuality   = "INVALID_DATA_QUALITY"
	ReasonDataQualityCritical  = "DATA_QUALITY_CRITICAL"
	ReasonCriticalRiskBand     = "CRITICAL_RISK_BAND"
	ReasonHighRiskHold         = "HIGH_RISK_HOLD"
	ReasonHighRiskLowQuality   = "HIGH_RISK_LOW_QUALITY"
	ReasonMediumRiskConstraint = "MEDIUM_RISK_CONSTRAINED"
	ReasonMediumRiskLowQuality = "MEDIUM_RISK_LOW_QUALITY"
	ReasonLowRiskAllow         = "LOW_RISK_ALLOW"
	ReasonLowRiskLowQuality    = "LOW_RISK_LOW_QUALITY"
	ReasonUnrecognizedRiskBand = "UNRECOGNIZED_RISK_BAND"
)

// Constraint sub-reasons appended to a MEDIUM band ALLOW_WITH_CONSTRAINTS.
const (
	ReasonNewCarrier = "NEW_CARRIER"
	ReasonNewLane    = "NEW_LANE"
	ReasonMissingIoT = "MISSING_IOT"
)
