package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/akalogirou/weft/internal/engine"
	"github.com/akalogirou/weft/internal/schedule"
	"github.com/akalogirou/weft/internal/store"
	"github.com/akalogirou/weft/internal/workflow"
	"github.com/google/uuid"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Runs
	mux.HandleFunc("POST /api/runs", s.createRun)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)

	// Agent catalog
	mux.HandleFunc("GET /api/agents", s.listAgents)

	// Scheduled workflows
	mux.HandleFunc("GET /api/workflows", s.listWorkflows)
	mux.HandleFunc("POST /api/workflows", s.createWorkflow)
	mux.HandleFunc("PUT /api/workflows/{id}", s.updateWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.deleteWorkflow)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

type runSubmission struct {
	engine.Request
	Async bool `json:"async,omitempty"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body runSubmission
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.Tasks) == 0 {
		jsonError(w, "tasks are required", http.StatusBadRequest)
		return
	}
	// Reject malformed graphs before accepting the run.
	if _, err := workflow.BuildGraph(body.Tasks); err != nil {
		jsonError(w, fmt.Sprintf("invalid workflow: %v", err), http.StatusBadRequest)
		return
	}
	if body.ID == "" {
		body.ID = uuid.New().String()
	}
	requestJSON, _ := json.Marshal(body.Request)

	if body.Async {
		if err := s.store.SaveRun(&store.RunRecord{
			ID:      body.ID,
			Name:    body.Name,
			Status:  string(workflow.RunRunning),
			Request: requestJSON,
		}); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		go s.executeAndPersist(body.Request, requestJSON)

		w.WriteHeader(http.StatusAccepted)
		jsonResponse(w, map[string]string{"id": body.ID, "status": string(workflow.RunRunning)})
		return
	}

	run, err := s.runner.Execute(r.Context(), body.Request)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SaveRun(store.NewRunRecord(run, requestJSON)); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, run)
}

// executeAndPersist backs async submissions. The run is detached from the
// request context on purpose: closing the HTTP connection must not cancel it.
func (s *Server) executeAndPersist(req engine.Request, requestJSON json.RawMessage) {
	run, err := s.runner.Execute(context.Background(), req)
	if err != nil {
		_ = s.store.SaveRun(&store.RunRecord{
			ID:      req.ID,
			Name:    req.Name,
			Status:  string(workflow.RunFailed),
			Request: requestJSON,
		})
		return
	}
	_ = s.store.SaveRun(store.NewRunRecord(run, requestJSON))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.store.GetRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteRun(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.catalog.Agents()
	out := make([]map[string]any, 0, len(agents))
	for _, a := range agents {
		// Credentials never leave the gateway.
		out = append(out, map[string]any{
			"name":    a.Name,
			"address": a.Address,
			"summary": a.Summary,
		})
	}
	jsonResponse(w, out)
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, workflowToAPI(wf))
	}
	jsonResponse(w, out)
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string          `json:"name"`
		Schedule string          `json:"schedule"`
		Request  json.RawMessage `json:"request"`
		Enabled  *bool           `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || len(body.Request) == 0 {
		jsonError(w, "name, schedule, and request are required", http.StatusBadRequest)
		return
	}

	var req engine.Request
	if err := json.Unmarshal(body.Request, &req); err != nil || len(req.Tasks) == 0 {
		jsonError(w, "request must contain tasks", http.StatusBadRequest)
		return
	}
	if _, err := workflow.BuildGraph(req.Tasks); err != nil {
		jsonError(w, fmt.Sprintf("invalid workflow: %v", err), http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
		return
	}

	status := "active"
	if body.Enabled != nil && !*body.Enabled {
		status = "paused"
	}

	wf := store.ScheduledWorkflow{
		ID:       uuid.New().String(),
		Name:     body.Name,
		Schedule: normalized,
		Request:  body.Request,
		Status:   status,
	}
	if status == "active" {
		wf.NextRunAt = schedule.NextFromJSON(normalized, time.Now())
	}

	if err := s.store.SaveWorkflow(&wf); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, workflowToAPI(wf))
}

func (s *Server) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := s.store.GetWorkflow(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "workflow not found", http.StatusNotFound)
		return
	}

	var body struct {
		Name     *string         `json:"name"`
		Schedule *string         `json:"schedule"`
		Request  json.RawMessage `json:"request"`
		Enabled  *bool           `json:"enabled"`
		Status   *string         `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		existing.Name = *body.Name
	}
	if len(body.Request) > 0 {
		var req engine.Request
		if err := json.Unmarshal(body.Request, &req); err != nil || len(req.Tasks) == 0 {
			jsonError(w, "request must contain tasks", http.StatusBadRequest)
			return
		}
		if _, err := workflow.BuildGraph(req.Tasks); err != nil {
			jsonError(w, fmt.Sprintf("invalid workflow: %v", err), http.StatusBadRequest)
			return
		}
		existing.Request = body.Request
	}

	if body.Enabled != nil {
		if *body.Enabled {
			existing.Status = "active"
		} else if existing.Status != "completed" {
			existing.Status = "paused"
		}
	} else if body.Status != nil {
		existing.Status = *body.Status
	}

	if body.Schedule != nil {
		normalized, err := schedule.Normalize(*body.Schedule)
		if err != nil {
			jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
			return
		}
		existing.Schedule = normalized
	}

	if existing.Status == "active" {
		existing.NextRunAt = schedule.NextFromJSON(existing.Schedule, time.Now())
	} else {
		existing.NextRunAt = nil
	}

	if err := s.store.SaveWorkflow(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, workflowToAPI(*existing))
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteWorkflow(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	runs, _ := s.store.ListRuns(10)
	workflows, _ := s.store.ListWorkflows()

	activeWorkflows := 0
	for _, wf := range workflows {
		if wf.Status == "active" {
			activeWorkflows++
		}
	}

	recent := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		entry := map[string]any{
			"id":      run.ID,
			"status":  run.Status,
			"started": formatEventTime(run.StartedAt),
		}
		if run.Name != "" {
			entry["name"] = run.Name
		}
		recent = append(recent, entry)
	}

	natsStatus := "disabled"
	natsClients := 0
	if s.bus != nil {
		natsStatus = "ok"
		natsClients = s.bus.NumClients()
	}

	jsonResponse(w, map[string]any{
		"status":           "ok",
		"agents":           len(s.catalog.Agents()),
		"active_workflows": activeWorkflows,
		"recent_runs":      recent,
		"nats":             natsStatus,
		"nats_clients":     natsClients,
		"uptime":           formatUptime(time.Since(s.startedAt)),
		"timestamp":        time.Now().UTC(),
		"version":          s.version,
	})
}

func workflowToAPI(wf store.ScheduledWorkflow) map[string]any {
	m := map[string]any{
		"id":       wf.ID,
		"name":     wf.Name,
		"schedule": wf.Schedule,
		"request":  wf.Request,
		"enabled":  wf.Status == "active",
		"status":   wf.Status,
	}
	if parsed, err := schedule.Parse(wf.Schedule); err == nil {
		m["schedule_display"] = parsed.Describe()
	}
	if wf.LastRunAt != nil {
		m["last_run"] = formatEventTime(*wf.LastRunAt)
		m["last_status"] = wf.LastStatus
	}
	if wf.NextRunAt != nil {
		m["next_run"] = formatEventTime(*wf.NextRunAt)
	}
	return m
}

func formatEventTime(t time.Time) string {
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
