// Package api exposes the diagnostics service over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cellwatch/cellmon/cellinfo"
	"github.com/cellwatch/cellmon/store"
)

type H map[string]any

// Server ties the HTTP handlers to the diagnostics service and snapshot
// history.
type Server struct {
	svc          *cellinfo.Service
	db           *store.Store
	hub          *Hub
	historyLimit int
}

// NewServer creates a Server. db may be nil, in which case the history
// endpoint reports that persistence is disabled.
func NewServer(svc *cellinfo.Service, db *store.Store, hub *Hub, historyLimit int) *Server {
	return &Server{
		svc:          svc,
		db:           db,
		hub:          hub,
		historyLimit: historyLimit,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/radio/{handle}", s.GetRadio).Methods("GET")
	api.HandleFunc("/identity/{handle}", s.GetIdentity).Methods("GET")
	api.HandleFunc("/time/{handle}", s.GetTime).Methods("GET")
	api.HandleFunc("/history/{handle}", s.GetHistory).Methods("GET")

	r.HandleFunc("/ws/radio", s.hub.HandleWebSocket)
	r.HandleFunc("/health", s.Health).Methods("GET")

	return r
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cellinfo.ErrInvalidParameter), errors.Is(err, cellinfo.ErrNotInitialised):
		status = http.StatusNotFound
	case errors.Is(err, cellinfo.ErrNotRegistered):
		status = http.StatusServiceUnavailable
	case errors.Is(err, cellinfo.ErrTransport):
		status = http.StatusBadGateway
	}
	respondJSON(w, status, H{"error": err.Error()})
}

func (s *Server) handleVar(r *http.Request) (int, error) {
	handle, err := strconv.Atoi(mux.Vars(r)["handle"])
	if err != nil {
		return 0, cellinfo.ErrInvalidParameter
	}
	return handle, nil
}

// GetRadio refreshes the radio parameters from the module and returns the
// new snapshot. Refreshes are rate limited by the module itself, so this is
// safe to call repeatedly.
func (s *Server) GetRadio(w http.ResponseWriter, r *http.Request) {
	handle, err := s.handleVar(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.svc.RefreshRadioParameters(handle); err != nil {
		respondError(w, err)
		return
	}

	snap, err := s.svc.Snapshot(handle)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := H{"handle": handle, "radio": snap}
	if snr, err := s.svc.GetSnrDb(handle); err == nil && snr != math.MaxInt32 {
		resp["snrDb"] = snr
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetIdentity reads the module and SIM identifiers. Fields that cannot be
// read are omitted rather than failing the whole response.
func (s *Server) GetIdentity(w http.ResponseWriter, r *http.Request) {
	handle, err := s.handleVar(r)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := H{"handle": handle}
	fields := []struct {
		name string
		read func(int) (string, error)
	}{
		{"manufacturer", s.svc.GetManufacturer},
		{"model", s.svc.GetModel},
		{"firmwareVersion", s.svc.GetFirmwareVersion},
		{"imei", s.svc.GetImei},
		{"imsi", s.svc.GetImsi},
		{"iccid", s.svc.GetIccid},
		{"operator", s.svc.GetOperator},
	}
	for _, f := range fields {
		v, err := f.read(handle)
		if errors.Is(err, cellinfo.ErrInvalidParameter) || errors.Is(err, cellinfo.ErrNotInitialised) {
			respondError(w, err)
			return
		}
		if err == nil {
			resp[f.name] = v
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetTime reads the module's real time clock.
func (s *Server) GetTime(w http.ResponseWriter, r *http.Request) {
	handle, err := s.handleVar(r)
	if err != nil {
		respondError(w, err)
		return
	}

	epoch, err := s.svc.GetTimeUTC(handle)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, H{
		"handle": handle,
		"epoch":  epoch,
		"utc":    time.Unix(epoch, 0).UTC().Format(time.RFC3339),
	})
}

// GetHistory returns recent stored snapshots, newest first.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	handle, err := s.handleVar(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if s.db == nil {
		respondJSON(w, http.StatusServiceUnavailable, H{"error": "snapshot persistence disabled"})
		return
	}

	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	snaps, err := s.db.RecentSnapshots(handle, limit)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, H{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, H{"handle": handle, "snapshots": snaps})
}

// Health reports liveness and the set of registered devices.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, H{"status": "ok", "devices": s.svc.Handles()})
}
