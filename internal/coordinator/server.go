package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/drover/internal/models"
	"github.com/fentz26/drover/internal/store"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server provides the HTTP API for the drover coordinator.
type Server struct {
	service *Service
	store   *store.Store
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, s *store.Store, addr string) *Server {
	return &Server{
		service: service,
		store:   s,
		addr:    addr,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting drover coordinator on %s", s.addr)
	return s.server.ListenAndServe()
}

// Handler returns the coordinator's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/commands", s.handleCommands)
	mux.HandleFunc("/commands/", s.handleCommandByID)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleCommands handles POST /commands and GET /commands
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createCommand(w, r)
	case http.MethodGet:
		s.listCommands(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCommandByID handles /commands/claim and /commands/{id}/*
func (s *Server) handleCommandByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/commands/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "command id required", http.StatusBadRequest)
		return
	}

	commandID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case commandID == "claim" && r.Method == http.MethodPost:
		s.claimCommand(w, r)
	case action == "" && r.Method == http.MethodGet:
		s.getCommand(w, r, commandID)
	case action == "result" && r.Method == http.MethodPost:
		s.submitResult(w, r, commandID)
	case action == "events" && r.Method == http.MethodGet:
		s.getCommandEvents(w, r, commandID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		health.OK = false
		health.DB = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(health)
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// --- Command Handlers ---

type createCommandRequest struct {
	Type    models.CommandType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

func (s *Server) createCommand(w http.ResponseWriter, r *http.Request) {
	var req createCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := validatePayload(req.Type, req.Payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmd, err := s.service.CreateCommand(req.Type, req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cmd)
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	cmds, err := s.service.ListCommands(status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if cmds == nil {
		cmds = []models.Command{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cmds)
}

func (s *Server) getCommand(w http.ResponseWriter, r *http.Request, commandID string) {
	cmd, err := s.service.GetCommand(commandID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cmd == nil {
		http.Error(w, "command not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cmd)
}

type claimRequest struct {
	AgentID string `json:"agent_id"`
}

// claimCommand hands the oldest eligible command to the requesting agent.
// 204 No Content means no work is available, which callers must be able to
// tell apart from an error.
func (s *Server) claimCommand(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id required", http.StatusBadRequest)
		return
	}

	cmd, err := s.service.Claim(req.AgentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cmd == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cmd)
}

type submitResultRequest struct {
	AgentID string          `json:"agent_id"`
	Result  json.RawMessage `json:"result"`
}

func (s *Server) submitResult(w http.ResponseWriter, r *http.Request, commandID string) {
	var req submitResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id required", http.StatusBadRequest)
		return
	}

	if err := s.service.Submit(commandID, req.AgentID, req.Result); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrCommandNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrNotRunning):
			status = http.StatusConflict
		case errors.Is(err, ErrAgentMismatch):
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"completed"}`))
}

func (s *Server) getCommandEvents(w http.ResponseWriter, r *http.Request, commandID string) {
	events, err := s.service.GetCommandEvents(commandID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []models.AuditEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// validatePayload checks the payload shape for known command types. This is
// the submission path's concern; the lifecycle core treats payloads as
// opaque beyond the type tag.
func validatePayload(cmdType models.CommandType, payload json.RawMessage) error {
	switch cmdType {
	case models.CommandTypeDelay:
		var p models.DelayPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return errors.New("invalid DELAY payload")
		}
		if p.Ms < 0 {
			return errors.New("DELAY payload requires ms >= 0")
		}
	case models.CommandTypeHTTPGetJSON:
		var p models.HTTPGetPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return errors.New("invalid HTTP_GET_JSON payload")
		}
		if p.URL == "" {
			return errors.New("HTTP_GET_JSON payload requires url")
		}
	default:
		return errors.New("unknown command type")
	}
	return nil
}
