package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akalogirou/weft/internal/workflow"
)

// RunRecord is the persisted form of a workflow run. The request, per-task
// states and artifacts are stored as JSON blobs; the store never interprets
// them.
type RunRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Status      string          `json:"status"`
	Request     json.RawMessage `json:"request"`
	Tasks       json.RawMessage `json:"tasks,omitempty"`
	Artifacts   json.RawMessage `json:"artifacts,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewRunRecord flattens a finished (or just-started) run for persistence.
// request is the submitted request JSON as received.
func NewRunRecord(run *workflow.Run, request json.RawMessage) *RunRecord {
	tasks, _ := json.Marshal(run.Tasks)
	var artifacts json.RawMessage
	if len(run.Artifacts) > 0 {
		artifacts, _ = json.Marshal(run.Artifacts)
	}
	return &RunRecord{
		ID:        run.ID,
		Name:      run.Name,
		Status:    string(run.Status),
		Request:   request,
		Tasks:     tasks,
		Artifacts: artifacts,
	}
}

const runColumns = `id, name, status, request, tasks, artifacts, started_at, completed_at`

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*RunRecord, error) {
	r := &RunRecord{}
	var request string
	var name, tasks, artifacts *string
	err := scanner.Scan(&r.ID, &name, &r.Status, &request, &tasks, &artifacts, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	r.Request = json.RawMessage(request)
	if name != nil {
		r.Name = *name
	}
	if tasks != nil {
		r.Tasks = json.RawMessage(*tasks)
	}
	if artifacts != nil {
		r.Artifacts = json.RawMessage(*artifacts)
	}
	return r, nil
}

func (s *Store) SaveRun(r *RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, name, status, request, tasks, artifacts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			tasks = excluded.tasks,
			artifacts = excluded.artifacts,
			completed_at = CASE WHEN excluded.status != 'running' THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Name, r.Status, string(r.Request), blob(r.Tasks), blob(r.Artifacts))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) DeleteRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	return err
}

// blob maps empty JSON to NULL so absent columns stay NULL in the table.
func blob(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
