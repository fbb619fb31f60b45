package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// LinkApplication records an application against an existing job.
func (s *Store) LinkApplication(ctx context.Context, jobID int64, status, note string) (Application, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		status = "applied"
	}
	app := Application{JobID: jobID, Status: status, Note: note, CreatedAt: s.now().UTC()}
	res, err := s.exec(ctx, "link application",
		`INSERT INTO applications (job_id, status, note, created_at) VALUES (?, ?, ?, ?)`,
		jobID, status, nullableString(note), formatTime(app.CreatedAt),
	)
	if err != nil {
		return Application{}, fmt.Errorf("link application to job %d: %w", jobID, err)
	}
	if app.ID, err = res.LastInsertId(); err != nil {
		return Application{}, fmt.Errorf("application id: %w", err)
	}
	return app, nil
}

// ApplicationsForJob lists applications linked to a job, oldest first.
func (s *Store) ApplicationsForJob(ctx context.Context, jobID int64) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, status, note, created_at FROM applications WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var (
			app        Application
			note       sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&app.ID, &app.JobID, &app.Status, &note, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app.Note = note.String
		app.CreatedAt, _ = parseTimeString(createdRaw)
		out = append(out, app)
	}
	return out, rows.Err()
}
