package db

import (
	"database/sql"
	"encoding/json"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/errors"
)

// History modes.
const (
	ModeApply   = "apply"
	ModeSession = "session"
)

// lastValuesKey is the single row last_values holds today.
const lastValuesKey = "default"

// HistoryRecord is one accepted edit.
type HistoryRecord struct {
	ID          string
	Mode        string
	SourcePath  string
	OutputPath  *string
	Effect      *string // slug; nil when no effect was active
	Opacity     float64
	Adjustments adjust.State
	Commits     int64
	Width       int
	Height      int
	CameraMake  *string
	CameraModel *string
	OutputBytes int64
	CreatedAt   int64
}

// LastValues are the slider values and effect of the most recent accept.
type LastValues struct {
	Effect      *string
	Opacity     float64
	Adjustments adjust.State
	UpdatedAt   int64
}

// HistoryFilter narrows ListHistory.
type HistoryFilter struct {
	Effect *string
	Mode   *string
	Limit  int
	Offset int
}

const historyColumns = `
	id, mode, source_path, output_path, effect, opacity, adjustments_json,
	commits, width, height, camera_make, camera_model, output_bytes, created_at
`

// InsertHistory stores a history record.
func InsertHistory(db *sql.DB, r *HistoryRecord) error {
	adj, err := json.Marshal(r.Adjustments)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `INSERT INTO history (` + historyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.Exec(query,
		r.ID, r.Mode, r.SourcePath, toNullString(r.OutputPath), toNullString(r.Effect),
		r.Opacity, string(adj), r.Commits, r.Width, r.Height,
		toNullString(r.CameraMake), toNullString(r.CameraModel), r.OutputBytes, r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetHistory retrieves a history record by its ULID.
func GetHistory(db *sql.DB, id string) (*HistoryRecord, error) {
	row := db.QueryRow(`SELECT `+historyColumns+` FROM history WHERE id = ?`, id)
	r, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("history record", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListHistory returns records newest first, plus the total matching count.
func ListHistory(db *sql.DB, f HistoryFilter) ([]*HistoryRecord, int, error) {
	where := " WHERE 1=1"
	var args []any
	if f.Effect != nil {
		where += " AND effect = ?"
		args = append(args, *f.Effect)
	}
	if f.Mode != nil {
		where += " AND mode = ?"
		args = append(args, *f.Mode)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM history`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + historyColumns + ` FROM history` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*HistoryRecord
	for rows.Next() {
		r, err := scanHistory(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// PurgeHistory hard-deletes records created before cutoff (unix seconds).
// A zero cutoff removes everything.
func PurgeHistory(db *sql.DB, cutoff int64) (int, error) {
	var (
		res sql.Result
		err error
	)
	if cutoff == 0 {
		res, err = db.Exec(`DELETE FROM history`)
	} else {
		res, err = db.Exec(`DELETE FROM history WHERE created_at < ?`, cutoff)
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// SaveLastValues replaces the stored last-used values.
func SaveLastValues(db *sql.DB, v *LastValues) error {
	adj, err := json.Marshal(v.Adjustments)
	if err != nil {
		return errors.NewInternal(err)
	}
	query := `
		INSERT INTO last_values (key, effect, opacity, adjustments_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			effect = excluded.effect,
			opacity = excluded.opacity,
			adjustments_json = excluded.adjustments_json,
			updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, lastValuesKey, toNullString(v.Effect), v.Opacity, string(adj), v.UpdatedAt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetLastValues returns the stored last-used values.
func GetLastValues(db *sql.DB) (*LastValues, error) {
	var (
		v       LastValues
		effect  sql.NullString
		adjJSON string
	)
	err := db.QueryRow(
		`SELECT effect, opacity, adjustments_json, updated_at FROM last_values WHERE key = ?`,
		lastValuesKey,
	).Scan(&effect, &v.Opacity, &adjJSON, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("last values", lastValuesKey)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	v.Effect = fromNullString(effect)
	if err := json.Unmarshal([]byte(adjJSON), &v.Adjustments); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &v, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanHistory scans a single row into a HistoryRecord.
func scanHistory(row rowScanner) (*HistoryRecord, error) {
	var (
		r           HistoryRecord
		outputPath  sql.NullString
		effect      sql.NullString
		adjJSON     string
		cameraMake  sql.NullString
		cameraModel sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.Mode, &r.SourcePath, &outputPath, &effect, &r.Opacity, &adjJSON,
		&r.Commits, &r.Width, &r.Height, &cameraMake, &cameraModel, &r.OutputBytes, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.OutputPath = fromNullString(outputPath)
	r.Effect = fromNullString(effect)
	r.CameraMake = fromNullString(cameraMake)
	r.CameraModel = fromNullString(cameraModel)

	if err := json.Unmarshal([]byte(adjJSON), &r.Adjustments); err != nil {
		return nil, err
	}
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
