// Package coordinator provides the HTTP API and service layer for the
// drover coordinator.
package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/fentz26/drover/internal/audit"
	"github.com/fentz26/drover/internal/models"
	"github.com/fentz26/drover/internal/store"
)

// Service provides the coordinator business logic. All lifecycle mutations
// go through it; preconditions are enforced here and in the store, never
// left to callers.
type Service struct {
	store *store.Store
	audit *audit.Recorder
}

// NewService creates a new coordinator service.
func NewService(s *store.Store, rec *audit.Recorder) *Service {
	return &Service{
		store: s,
		audit: rec,
	}
}

// --- Command Operations ---

// CreateCommand creates a new pending command.
func (s *Service) CreateCommand(cmdType models.CommandType, payload json.RawMessage) (*models.Command, error) {
	cmd, err := s.store.CreateCommand(cmdType, payload)
	if err != nil {
		return nil, err
	}

	s.audit.Record("command.create", map[string]interface{}{"type": cmdType, "payload": payload}, "success", cmd.ID, "")
	return cmd, nil
}

// GetCommand retrieves a command by ID. Returns nil, nil when unknown.
func (s *Service) GetCommand(id string) (*models.Command, error) {
	return s.store.GetCommand(id)
}

// ListCommands returns commands in creation order, optionally filtered by status.
func (s *Service) ListCommands(status string) ([]models.Command, error) {
	return s.store.ListCommands(status)
}

// Claim binds the oldest eligible command to the requesting agent. Returns
// nil, nil when no command is eligible; that is a defined empty result, not
// an error.
func (s *Service) Claim(agentID string) (*models.Command, error) {
	cmd, err := s.store.ClaimOldest(agentID)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, nil
	}

	s.audit.Record("command.claim", map[string]string{"command_id": cmd.ID, "agent_id": agentID}, "success", cmd.ID, "")
	return cmd, nil
}

// Submit commits a result for a running command held by agentID. The store
// transaction checks, in order: the command exists, it is running, and it
// is bound to agentID; each failure surfaces as a distinct sentinel error
// with no mutation.
func (s *Service) Submit(commandID, agentID string, result json.RawMessage) error {
	if err := s.store.CompleteCommand(commandID, agentID, result); err != nil {
		s.audit.Record("command.complete", map[string]string{"command_id": commandID, "agent_id": agentID}, "rejected", commandID, err.Error())
		return err
	}

	s.audit.Record("command.complete", map[string]string{"command_id": commandID, "agent_id": agentID}, "success", commandID, "")
	return nil
}

// Recover reclaims commands orphaned by a coordinator crash. It must run
// exactly once, before the coordinator accepts claim or submit requests.
func (s *Service) Recover() (int, error) {
	reclaimed, err := s.store.RecoverRunning()
	if err != nil {
		return 0, err
	}

	s.audit.Record("coordinator.recover", nil, "success", "", fmt.Sprintf("reclaimed %d commands", reclaimed))
	return reclaimed, nil
}

// GetCommandEvents returns the audit trail for a command.
func (s *Service) GetCommandEvents(commandID string) ([]models.AuditEvent, error) {
	return s.store.GetAuditEventsForCommand(commandID)
}
