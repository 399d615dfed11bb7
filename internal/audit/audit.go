// Package audit provides append-only lifecycle event recording for drover.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/drover/internal/models"
	"github.com/fentz26/drover/internal/store"
)

// Recorder writes audit events for state-mutating coordinator actions.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a new audit recorder.
func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s}
}

// Record writes an audit event for a state-mutating action.
func (r *Recorder) Record(action string, inputs interface{}, outcome, commandID, details string) (*models.AuditEvent, error) {
	inputsHash := hashInputs(inputs)
	return r.store.WriteAuditEvent(action, inputsHash, outcome, commandID, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
