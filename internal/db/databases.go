package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbaasd/dbaasd/internal/models"
)

const timeLayout = time.RFC3339Nano

const databaseColumns = `id, name, description, workload, status, account_id,
	region_id, region_name, contact_id, contact_name, contact_email,
	credentials, cases_json, events_json, created_at, updated_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DatabaseFilter scopes ListDatabases.
type DatabaseFilter struct {
	// AccountID restricts results to one tenant. Empty means all accounts.
	AccountID string
	// ExcludeDeleted drops soft-deleted documents.
	ExcludeDeleted bool
}

// DatabasePatch is the minimal set of column changes to persist for a
// database document. Nil fields are left untouched. Cases and Events are
// full replacement values computed by the caller.
type DatabasePatch struct {
	Name        *string
	Description *string
	Workload    *models.DatabaseWorkload
	Status      *models.DatabaseStatus
	TechContact *models.UserRef
	Credentials []byte
	Cases       []models.CaseRef
	Events      map[string]models.EventRecord
}

// Empty reports whether the patch would change nothing.
func (p DatabasePatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Workload == nil &&
		p.Status == nil && p.TechContact == nil && p.Credentials == nil &&
		p.Cases == nil && p.Events == nil
}

// InsertDatabase inserts a new database document.
//
// Returns ErrDuplicateID when the id is already taken.
func (s *Store) InsertDatabase(ctx context.Context, doc models.Database) error {
	if s == nil || s.DB == nil {
		return errors.New("db store is nil")
	}
	return insertDatabase(ctx, s.DB, doc)
}

// InsertDatabaseTx is InsertDatabase inside an existing transaction.
func (s *Store) InsertDatabaseTx(ctx context.Context, tx *sql.Tx, doc models.Database) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	return insertDatabase(ctx, tx, doc)
}

func insertDatabase(ctx context.Context, ex execer, doc models.Database) error {
	if strings.TrimSpace(doc.ID) == "" {
		return errors.New("database id is required")
	}
	if strings.TrimSpace(doc.AccountID) == "" {
		return errors.New("database account id is required")
	}
	if doc.Status == "" {
		return errors.New("database status is required")
	}
	casesJSON, err := marshalCases(doc.Cases)
	if err != nil {
		return err
	}
	eventsJSON, err := marshalEvents(doc.Events)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO databases (
		id, name, description, workload, status, account_id,
		region_id, region_name, contact_id, contact_name, contact_email,
		credentials, cases_json, events_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.Name,
		doc.Description,
		doc.Workload,
		doc.Status,
		doc.AccountID,
		doc.Region.ID,
		nullIfEmpty(doc.Region.Name),
		doc.TechContact.ID,
		nullIfEmpty(doc.TechContact.Name),
		nullIfEmpty(doc.TechContact.Email),
		doc.Credentials,
		casesJSON,
		eventsJSON,
		formatTime(createdAt),
		formatTime(updatedAt),
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("insert database %s: %w", doc.ID, ErrDuplicateID)
		}
		return fmt.Errorf("insert database %s: %w", doc.ID, err)
	}
	return nil
}

// GetDatabase loads a database document by id. Returns sql.ErrNoRows when
// the id is unknown.
func (s *Store) GetDatabase(ctx context.Context, id string) (models.Database, error) {
	if s == nil || s.DB == nil {
		return models.Database{}, errors.New("db store is nil")
	}
	row := s.DB.QueryRowContext(ctx, `SELECT `+databaseColumns+`
		FROM databases WHERE id = ?`, id)
	return scanDatabaseRow(row)
}

// ListDatabases returns one page of database documents matching the
// filter, ordered by creation time descending. Callers page through with
// limit/offset until a short page comes back.
func (s *Store) ListDatabases(ctx context.Context, filter DatabaseFilter, limit, offset int) ([]models.Database, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("db store is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if offset < 0 {
		return nil, errors.New("offset must be non-negative")
	}
	query := `SELECT ` + databaseColumns + ` FROM databases`
	var clauses []string
	var args []any
	if filter.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.ExcludeDeleted {
		clauses = append(clauses, "status != ?")
		args = append(args, models.StatusDeleted)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()
	var out []models.Database
	for rows.Next() {
		doc, err := scanDatabaseRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}
	return out, nil
}

// UpdateDatabase applies a patch to an existing document. Returns
// sql.ErrNoRows when the id is unknown. An empty patch is rejected.
func (s *Store) UpdateDatabase(ctx context.Context, id string, patch DatabasePatch) error {
	if s == nil || s.DB == nil {
		return errors.New("db store is nil")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("database id is required")
	}
	if patch.Empty() {
		return errors.New("patch is empty")
	}
	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Workload != nil {
		sets = append(sets, "workload = ?")
		args = append(args, *patch.Workload)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.TechContact != nil {
		sets = append(sets, "contact_id = ?", "contact_name = ?", "contact_email = ?")
		args = append(args, patch.TechContact.ID, nullIfEmpty(patch.TechContact.Name), nullIfEmpty(patch.TechContact.Email))
	}
	if patch.Credentials != nil {
		sets = append(sets, "credentials = ?")
		args = append(args, patch.Credentials)
	}
	if patch.Cases != nil {
		casesJSON, err := marshalCases(patch.Cases)
		if err != nil {
			return err
		}
		sets = append(sets, "cases_json = ?")
		args = append(args, casesJSON)
	}
	if patch.Events != nil {
		eventsJSON, err := marshalEvents(patch.Events)
		if err != nil {
			return err
		}
		sets = append(sets, "events_json = ?")
		args = append(args, eventsJSON)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()))
	args = append(args, id)

	res, err := s.DB.ExecContext(ctx, `UPDATE databases SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update database %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected update database %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetDatabaseCasesTx replaces the case list of a document inside an
// existing transaction. Used to append the creation case in the same
// transaction as the insert.
func (s *Store) SetDatabaseCasesTx(ctx context.Context, tx *sql.Tx, id string, cases []models.CaseRef) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("database id is required")
	}
	casesJSON, err := marshalCases(cases)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE databases SET cases_json = ?, updated_at = ? WHERE id = ?`,
		casesJSON, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("set database cases %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected set database cases %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountDatabasesByStatus returns document counts per lifecycle status.
func (s *Store) CountDatabasesByStatus(ctx context.Context) (map[models.DatabaseStatus]int, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("db store is nil")
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM databases GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count databases: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.DatabaseStatus]int)
	for rows.Next() {
		var status models.DatabaseStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan database counts: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate database counts: %w", err)
	}
	return counts, nil
}

func scanDatabaseRow(scanner interface{ Scan(dest ...any) error }) (models.Database, error) {
	var doc models.Database
	var regionName sql.NullString
	var contactName sql.NullString
	var contactEmail sql.NullString
	var casesJSON sql.NullString
	var eventsJSON string
	var createdAt string
	var updatedAt string
	if err := scanner.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Description,
		&doc.Workload,
		&doc.Status,
		&doc.AccountID,
		&doc.Region.ID,
		&regionName,
		&doc.TechContact.ID,
		&contactName,
		&contactEmail,
		&doc.Credentials,
		&casesJSON,
		&eventsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return models.Database{}, err
	}
	if regionName.Valid {
		doc.Region.Name = regionName.String
	}
	if contactName.Valid {
		doc.TechContact.Name = contactName.String
	}
	if contactEmail.Valid {
		doc.TechContact.Email = contactEmail.String
	}
	if casesJSON.Valid && casesJSON.String != "" {
		if err := json.Unmarshal([]byte(casesJSON.String), &doc.Cases); err != nil {
			return models.Database{}, fmt.Errorf("parse cases: %w", err)
		}
	}
	if eventsJSON != "" {
		if err := json.Unmarshal([]byte(eventsJSON), &doc.Events); err != nil {
			return models.Database{}, fmt.Errorf("parse events: %w", err)
		}
	}
	var err error
	if createdAt != "" {
		doc.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return models.Database{}, fmt.Errorf("parse created_at: %w", err)
		}
	}
	if updatedAt != "" {
		doc.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return models.Database{}, fmt.Errorf("parse updated_at: %w", err)
		}
	}
	return doc, nil
}

func marshalCases(cases []models.CaseRef) (string, error) {
	if cases == nil {
		cases = []models.CaseRef{}
	}
	data, err := json.Marshal(cases)
	if err != nil {
		return "", fmt.Errorf("marshal cases: %w", err)
	}
	return string(data), nil
}

func marshalEvents(events map[string]models.EventRecord) (string, error) {
	if events == nil {
		events = map[string]models.EventRecord{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
