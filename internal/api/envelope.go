package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentflow/beads/internal/apierr"
)

// ErrorEnvelope is the dashboard HTTP API's error response shape, per
// spec §6: {error, code, details?}.
type ErrorEnvelope struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// hardEnforcementDetails is embedded on HARD_ENFORCEMENT responses so
// callers can self-correct without a second request, per spec §4.8/§7.
type hardEnforcementDetails struct {
	Type             string   `json:"type"`
	From             string   `json:"from"`
	To               string   `json:"to"`
	MissingFields    []string `json:"missing_fields"`
	ValidTransitions []string `json:"valid_transitions"`
	Hint             string   `json:"hint"`
}

// writeError maps err's apierr.Kind to an HTTP status and JSON envelope,
// per spec §6/§7.
func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	status := apierr.HTTPStatus(kind)

	env := ErrorEnvelope{Error: err.Error(), Code: string(kind)}
	if apiErr, ok := apierr.As(err); ok && kind == apierr.HardEnforcement {
		env.Details = hardEnforcementDetails{
			Type:             apiErr.Type,
			From:             apiErr.From,
			To:               apiErr.To,
			MissingFields:    apiErr.MissingFields,
			ValidTransitions: apiErr.ValidTransitions,
			Hint:             "populate the missing fields, or choose one of valid_transitions",
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
