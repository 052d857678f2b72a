package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusCreated      RunStatus = "created"
	RunStatusAudioReady   RunStatus = "audio_ready"
	RunStatusVideoRunning RunStatus = "video_running"
	RunStatusDone         RunStatus = "done"
	RunStatusFailed       RunStatus = "failed"
)

// Run is one pass through the pipeline. File fields are names inside the run directory.
type Run struct {
	ID         string    `json:"id"`
	Status     RunStatus `json:"status"`
	Text       string    `json:"text,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	Background string    `json:"background,omitempty"`
	Music      string    `json:"music,omitempty"`
	AudioFile  string    `json:"audio_file,omitempty"`
	ClipFile   string    `json:"clip_file,omitempty"`
	VideoFile  string    `json:"video_file,omitempty"`
	ShareURL   string    `json:"share_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const runColumns = `id, status, text, avatar, background, music, audio_file, clip_file, video_file, share_url, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run              Run
		created, updated int64
	)

	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Text,
		&run.Avatar,
		&run.Background,
		&run.Music,
		&run.AudioFile,
		&run.ClipFile,
		&run.VideoFile,
		&run.ShareURL,
		&run.Error,
		&created,
		&updated,
	)
	if err != nil {
		return nil, parseErr(err)
	}

	run.CreatedAt = time.Unix(0, created).UTC()
	run.UpdatedAt = time.Unix(0, updated).UTC()

	return &run, nil
}

func (db *DB) CreateRun(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	if run.Status == "" {
		run.Status = RunStatusCreated
	}

	_, err := db.ExecContext(ctx, `
		insert into runs (`+runColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		run.ID,
		run.Status,
		run.Text,
		run.Avatar,
		run.Background,
		run.Music,
		run.AudioFile,
		run.ClipFile,
		run.VideoFile,
		run.ShareURL,
		run.Error,
		run.CreatedAt.UnixNano(),
		run.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

func (db *DB) UpdateRun(ctx context.Context, run *Run) error {
	run.UpdatedAt = time.Now().UTC()

	res, err := db.ExecContext(ctx, `
		update runs set
			status = $2,
			text = $3,
			avatar = $4,
			background = $5,
			music = $6,
			audio_file = $7,
			clip_file = $8,
			video_file = $9,
			share_url = $10,
			error = $11,
			updated_at = $12
		where
			id = $1
	`,
		run.ID,
		run.Status,
		run.Text,
		run.Avatar,
		run.Background,
		run.Music,
		run.AudioFile,
		run.ClipFile,
		run.VideoFile,
		run.ShareURL,
		run.Error,
		run.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("failed to update run %s: %w", run.ID, parseErr(sql.ErrNoRows))
	}

	return nil
}

func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `select `+runColumns+` from runs where id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	return run, nil
}

func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	row := db.QueryRowContext(ctx, `select `+runColumns+` from runs order by created_at desc, rowid desc limit 1`)

	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return run, nil
}

func (db *DB) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.QueryContext(ctx, `select `+runColumns+` from runs order by created_at desc, rowid desc limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// DeleteRunsBefore removes runs not updated since t and returns their ids. Running runs are kept.
func (db *DB) DeleteRunsBefore(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		delete from runs
		where updated_at < $1 and status != $2
		returning id
	`, t.UnixNano(), RunStatusVideoRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to delete runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted runs: %w", err)
	}

	return ids, nil
}
