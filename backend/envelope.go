package backend

import (
	"encoding/json"

	"github.com/vbongda/vleague-auth/internal/utils"
)

// envelope is the backend's uniform response wrapper. Some endpoints report
// the outcome as a boolean "success", others as a string "status".
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *envelope) ok() bool {
	if e.Success != nil {
		return utils.Value(e.Success)
	}
	return e.Status == "success" || e.Status == "ok"
}
