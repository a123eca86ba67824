package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduledWorkflow is a stored workflow request submitted on a schedule.
// Request holds the full task list as JSON.
type ScheduledWorkflow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Schedule   string          `json:"schedule"`
	Request    json.RawMessage `json:"request"`
	Status     string          `json:"status"`
	NextRunAt  *time.Time      `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty"`
	LastStatus string          `json:"last_status,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

const workflowColumns = `id, name, schedule, request, status, next_run_at, last_run_at, last_status, last_error, created_at`

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*ScheduledWorkflow, error) {
	w := &ScheduledWorkflow{}
	var request string
	var lastStatus, lastError *string
	err := scanner.Scan(&w.ID, &w.Name, &w.Schedule, &request, &w.Status,
		&w.NextRunAt, &w.LastRunAt, &lastStatus, &lastError, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Request = json.RawMessage(request)
	if lastStatus != nil {
		w.LastStatus = *lastStatus
	}
	if lastError != nil {
		w.LastError = *lastError
	}
	return w, nil
}

func (s *Store) SaveWorkflow(w *ScheduledWorkflow) error {
	_, err := s.db.Exec(`
		INSERT INTO scheduled_workflows (id, name, schedule, request, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			request = excluded.request,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		w.ID, w.Name, w.Schedule, string(w.Request), w.Status, w.NextRunAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

func (s *Store) GetWorkflow(id string) (*ScheduledWorkflow, error) {
	row := s.db.QueryRow(`SELECT `+workflowColumns+` FROM scheduled_workflows WHERE id = ?`, id)
	w, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return w, nil
}

func (s *Store) ListWorkflows() ([]ScheduledWorkflow, error) {
	rows, err := s.db.Query(`SELECT ` + workflowColumns + ` FROM scheduled_workflows ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []ScheduledWorkflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, *w)
	}
	return workflows, rows.Err()
}

func (s *Store) GetDueWorkflows(now time.Time) ([]ScheduledWorkflow, error) {
	rows, err := s.db.Query(`
		SELECT `+workflowColumns+`
		FROM scheduled_workflows
		WHERE status = 'active' AND next_run_at <= ?
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("get due workflows: %w", err)
	}
	defer rows.Close()

	var workflows []ScheduledWorkflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, *w)
	}
	return workflows, rows.Err()
}

func (s *Store) UpdateWorkflowRun(id string, lastStatus string, lastError string, nextRunAt *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE scheduled_workflows
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`, lastStatus, lastError, nextRunAt, id)
	return err
}

func (s *Store) UpdateWorkflowStatus(id string, status string) error {
	_, err := s.db.Exec(`UPDATE scheduled_workflows SET status = ? WHERE id = ?`, status, id)
	return err
}

func (s *Store) DeleteWorkflow(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_workflows WHERE id = ?`, id)
	return err
}
