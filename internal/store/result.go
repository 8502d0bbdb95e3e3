package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Result is one saved session in the local journal. RemoteID is the record
// id assigned by the backend's results API, zero when unknown.
type Result struct {
	ID            string
	ProcedureID   int
	ProcedureName string
	Marks         int
	TotalStages   int
	Score         int
	RemoteID      int
	CompletedAt   time.Time
}

// ResultRepository provides access to the results journal.
type ResultRepository struct {
	db *sql.DB
}

// Results returns the result repository for this store.
func (s *Store) Results() *ResultRepository {
	return &ResultRepository{db: s.db}
}

// Create inserts a new result into the journal.
func (r *ResultRepository) Create(res *Result) error {
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO results (id, procedure_id, procedure_name, marks, total_stages, score, remote_id, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.ProcedureID, res.ProcedureName, res.Marks, res.TotalStages, res.Score, res.RemoteID, res.CompletedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a result by its session id.
func (r *ResultRepository) GetByID(id string) (*Result, error) {
	res := &Result{}

	err := r.db.QueryRow(
		`SELECT id, procedure_id, procedure_name, marks, total_stages, score, remote_id, completed_at
		 FROM results WHERE id = ?`,
		id,
	).Scan(&res.ID, &res.ProcedureID, &res.ProcedureName, &res.Marks, &res.TotalStages, &res.Score, &res.RemoteID, &res.CompletedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return res, nil
}

// List retrieves the most recent results, newest first. A limit of zero or
// less means no limit.
func (r *ResultRepository) List(limit int) ([]*Result, error) {
	query := `SELECT id, procedure_id, procedure_name, marks, total_stages, score, remote_id, completed_at
	 FROM results ORDER BY completed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		res := &Result{}
		err := rows.Scan(&res.ID, &res.ProcedureID, &res.ProcedureName, &res.Marks, &res.TotalStages, &res.Score, &res.RemoteID, &res.CompletedAt)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// ListByProcedure retrieves all results for one procedure, newest first.
func (r *ResultRepository) ListByProcedure(procedureID int) ([]*Result, error) {
	rows, err := r.db.Query(
		`SELECT id, procedure_id, procedure_name, marks, total_stages, score, remote_id, completed_at
		 FROM results WHERE procedure_id = ? ORDER BY completed_at DESC, id DESC`,
		procedureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		res := &Result{}
		err := rows.Scan(&res.ID, &res.ProcedureID, &res.ProcedureName, &res.Marks, &res.TotalStages, &res.Score, &res.RemoteID, &res.CompletedAt)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// BestScore returns the highest score ever recorded for a procedure, or
// ErrNotFound when no attempt has been journaled yet.
func (r *ResultRepository) BestScore(procedureID int) (int, error) {
	var best sql.NullInt64

	err := r.db.QueryRow(
		`SELECT MAX(score) FROM results WHERE procedure_id = ?`,
		procedureID,
	).Scan(&best)
	if err != nil {
		return 0, err
	}
	if !best.Valid {
		return 0, ErrNotFound
	}

	return int(best.Int64), nil
}
