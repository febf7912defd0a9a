package enforce

import (
	"github.com/davidahmann/pdogate/internal/cro"
	"github.com/davidahmann/pdogate/internal/signature"
	"github.com/davidahmann/pdogate/pkg/types"
)

// ValidationResult is the single outcome of a pipeline run. Valid is true
// only when every requested stage passed.
type ValidationResult struct {
	Valid           bool                    `json:"valid"`
	Errors          []types.ValidationError `json:"errors"`
	PDOID           string                  `json:"pdo_id,omitempty"`
	SignatureResult *signature.Result       `json:"signature_result,omitempty"`
	CROResult       *cro.Result             `json:"cro_result,omitempty"`
}

// AllowsExecution reports whether the governed action may proceed.
func (r ValidationResult) AllowsExecution() bool {
	return r.Valid
}

// FirstError returns the first recorded error, if any.
func (r ValidationResult) FirstError() (types.ValidationError, bool) {
	if len(r.Errors) == 0 {
		return types.ValidationError{}, false
	}
	return r.Errors[0], true
}
