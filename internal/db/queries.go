package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/record"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.AkaError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const summaryColumns = `
	id, doc_fingerprint, source, kind, model, max_context, words,
	chunks_total, chunks_done, summary, used_tokens, tokens_estimate,
	created_at, updated_at`

// Insert stores a new summary record.
func Insert(db *sql.DB, s *record.Summary) error {
	query := `INSERT INTO summaries (` + summaryColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.Exec(query,
		s.ID, s.DocFingerprint, s.Source, s.Kind, s.Model, s.MaxContext, s.Words,
		s.ChunksTotal, s.ChunksDone, toNullString(s.Summary), s.UsedTokens, s.TokensEstimate,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a summary record by its ULID.
func GetByID(db *sql.DB, id string) (*record.Summary, error) {
	row := db.QueryRow(`SELECT `+summaryColumns+` FROM summaries WHERE id = ?`, id)
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// FindByDocument retrieves the record for a document summarized with model
// at the given chunk size.
func FindByDocument(db *sql.DB, docFingerprint, model string, maxContext int) (*record.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries
		WHERE doc_fingerprint = ? AND model = ? AND max_context = ?`

	row := db.QueryRow(query, docFingerprint, model, maxContext)
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(docFingerprint)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// Checkpoint stores the state after a fold and bumps updated_at.
func Checkpoint(db *sql.DB, id, summary string, usedTokens, chunksDone int) error {
	now := time.Now().Unix()

	query := `
		UPDATE summaries
		SET summary = ?, used_tokens = ?, chunks_done = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := db.Exec(query, summary, usedTokens, chunksDone, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// List returns record metadata, most recently updated first, plus the total count.
func List(db *sql.DB, limit, offset int) ([]record.Item, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM summaries`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + summaryColumns + ` FROM summaries
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []record.Item
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, s.ToItem())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return items, total, nil
}

// Delete removes a summary record.
func Delete(db *sql.DB, id string) error {
	result, err := db.Exec(`DELETE FROM summaries WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSummary scans a single row into a Summary.
func scanSummary(row scanner) (*record.Summary, error) {
	var (
		s       record.Summary
		summary sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.DocFingerprint, &s.Source, &s.Kind, &s.Model, &s.MaxContext, &s.Words,
		&s.ChunksTotal, &s.ChunksDone, &summary, &s.UsedTokens, &s.TokensEstimate,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Summary = fromNullString(summary)
	return &s, nil
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
