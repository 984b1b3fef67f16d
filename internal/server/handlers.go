package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/halt"
)

// handleHealth reports process liveness plus database health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	databases := map[string]string{}
	check := func(name string, err error) {
		if err != nil {
			databases[name] = err.Error()
			status = "degraded"
		} else {
			databases[name] = "ok"
		}
	}
	if s.auditDB != nil {
		check("audit", s.auditDB.QuickCheck(ctx))
	}
	if s.positionDB != nil {
		check("positions", s.positionDB.QuickCheck(ctx))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"halted":    s.supervisor.Halted(),
		"databases": databases,
		"time":      time.Now().UTC(),
	})
}

// handleSystemStatus reports host resource usage alongside engine state
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"halt":    s.supervisor.Status(),
		"account": s.engine.Account(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		payload["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory_percent"] = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		payload["disk_percent"] = du.UsedPercent
	}

	writeJSON(w, http.StatusOK, payload)
}

// handlePositions returns all tracked positions
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Positions())
}

// handleAccount returns the current account snapshot
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Account())
}

// handleHaltStatus returns the halt latch state
func (s *Server) handleHaltStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

type haltRequest struct {
	Detail string `json:"detail"`
	Source string `json:"source"`
}

// handleHaltEngage manually engages the halt latch
func (s *Server) handleHaltEngage(w http.ResponseWriter, r *http.Request) {
	var req haltRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.supervisor.Engage(halt.TriggerManual, req.Detail)
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

// handleHaltReset clears the halt latch. Reset is only ever external and
// explicit; this endpoint is that external channel.
func (s *Server) handleHaltReset(w http.ResponseWriter, r *http.Request) {
	var req haltRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	source := req.Source
	if source == "" {
		source = "api"
	}

	if !s.supervisor.Reset(source) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "not halted"})
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
