// Package transport exposes the orchestrator's command surface and live
// event stream over HTTP and WebSocket for a UI client.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dev.helix.sqlmaint/internal/app"
	"dev.helix.sqlmaint/internal/logging"
	"dev.helix.sqlmaint/internal/maintenance"
)

var log = logging.Named("transport")

// Server serves the HTTP command surface, a WebSocket event stream, and a
// Prometheus scrape endpoint.
type Server struct {
	app    *app.App
	router *mux.Router
	server *http.Server

	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]bool
	clientMu sync.RWMutex
}

// APIResponse is the envelope every command-surface response is wrapped in.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewServer builds a Server around app and subscribes it to the app's
// event stream for WebSocket fan-out.
func NewServer(a *app.App, addr string) *Server {
	s := &Server{
		app: a,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}

	s.router = mux.NewRouter()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go s.pumpEvents(a.Emitter.Subscribe(64))

	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	log.Info("listening on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/run", s.handleRunMaintenance).Methods("POST")
	s.router.HandleFunc("/api/v1/pause/{profileId}", s.handlePause).Methods("POST")
	s.router.HandleFunc("/api/v1/resume/{profileId}", s.handleResume).Methods("POST")
	s.router.HandleFunc("/api/v1/skip/{profileId}", s.handleSkipDatabase).Methods("POST")
	s.router.HandleFunc("/api/v1/stop/{profileId}", s.handleStop).Methods("POST")
	s.router.HandleFunc("/api/v1/test-connection/{profileId}", s.handleTestConnection).Methods("POST")
	s.router.HandleFunc("/api/v1/databases/{profileId}", s.handleGetDatabases).Methods("GET")
	s.router.HandleFunc("/api/v1/history", s.handleGetRunHistory).Methods("GET")
	s.router.HandleFunc("/api/v1/history", s.handleClearRunHistory).Methods("DELETE")

	s.router.HandleFunc("/api/v1/profiles", s.handleListProfiles).Methods("GET")
	s.router.HandleFunc("/api/v1/profiles", s.handleSaveProfile).Methods("POST", "PUT")
	s.router.HandleFunc("/api/v1/profiles/{profileId}", s.handleDeleteProfile).Methods("DELETE")

	s.router.HandleFunc("/api/v1/events", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.app.Registry, promhttp.HandlerOpts{}))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeOK(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, APIResponse{Success: false, Error: err.Error()})
}

func pathParam(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func (s *Server) handleRunMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profile   maintenance.ServerProfile      `json:"profile"`
		Databases []string                       `json:"databases"`
		Options   maintenance.MaintenanceOptions `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.app.Coordinator.Run(r.Context(), req.Profile, req.Databases, req.Options); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Coordinator.Pause(pathParam(r, "profileId")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Coordinator.Resume(pathParam(r, "profileId")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleSkipDatabase(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Coordinator.SkipDatabase(pathParam(r, "profileId")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Coordinator.Stop(pathParam(r, "profileId")); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.app.TestConnection(r.Context(), pathParam(r, "profileId")); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleGetDatabases(w http.ResponseWriter, r *http.Request) {
	names, err := s.app.GetDatabases(r.Context(), pathParam(r, "profileId"))
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeOK(w, names)
}

func (s *Server) handleGetRunHistory(w http.ResponseWriter, r *http.Request) {
	limit := 200
	var profileID *string
	if id := r.URL.Query().Get("profileId"); id != "" {
		profileID = &id
	}
	records, err := s.app.History.GetRuns(r.Context(), profileID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, records)
}

func (s *Server) handleClearRunHistory(w http.ResponseWriter, r *http.Request) {
	var profileID *string
	if id := r.URL.Query().Get("profileId"); id != "" {
		profileID = &id
	}
	if err := s.app.History.DeleteRuns(r.Context(), profileID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.app.Profiles.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, profiles)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile maintenance.ServerProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.app.SaveProfile(profile); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteProfile(pathParam(r, "profileId")); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed: %s", err)
		return
	}

	s.clientMu.Lock()
	s.clients[conn] = true
	s.clientMu.Unlock()

	// Drain and discard anything the client sends; this is a one-way
	// event feed, but reading keeps the connection's close frame flowing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientMu.Lock()
	delete(s.clients, conn)
	s.clientMu.Unlock()
	conn.Close()
}

func (s *Server) pumpEvents(events <-chan maintenance.Event) {
	for event := range events {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event maintenance.Event) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			client.Close()
			delete(s.clients, client)
		}
	}
}
