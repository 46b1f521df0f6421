package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// dialect covers the differences between the SQL backends.
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// lockClause is appended to the pund lock query.
	lockClause string
}

var (
	sqliteDialect   = dialect{name: "sqlite3"}
	postgresDialect = dialect{name: "postgres", numbered: true, lockClause: " FOR UPDATE"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// queries implements Tx on top of a database handle or an open transaction.
type queries struct {
	db      dbtx
	dialect dialect
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// execOne runs an UPDATE and reports not_found when no row matched.
func (q *queries) execOne(ctx context.Context, what, query string, args ...any) error {
	result, err := q.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}

// SQLStore manages the database connection and implements Storage for
// SQLite and PostgreSQL.
type SQLStore struct {
	*queries
	db *sql.DB
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{queries: &queries{db: db, dialect: d}, db: db}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// WithTx runs fn in a single database transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// Users

const userColumns = `id, email, name, mobile, password_hash, is_active, created_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Mobile, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser inserts a new user.
func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	_, err := q.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Mobile, u.PasswordHash, u.IsActive, u.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// GetUserByEmail retrieves a user by lower-cased email.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// UpdateUser updates profile, password and activation of a user.
func (q *queries) UpdateUser(ctx context.Context, u *models.User) error {
	return q.execOne(ctx, "user",
		`UPDATE users SET name = ?, mobile = ?, password_hash = ?, is_active = ? WHERE id = ?`,
		u.Name, u.Mobile, u.PasswordHash, u.IsActive, u.ID,
	)
}

// Punds

const pundColumns = `id, name, description, pund_type, is_active, owner_id, start_date, created_at`

func scanPund(row scanner) (*models.Pund, error) {
	var p models.Pund
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Type, &p.IsActive, &p.OwnerID, &p.StartDate, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.StartDate = p.StartDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// CreatePund inserts a new pund.
func (q *queries) CreatePund(ctx context.Context, p *models.Pund) error {
	_, err := q.exec(ctx,
		`INSERT INTO punds (`+pundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Type, p.IsActive, p.OwnerID, p.StartDate.UTC(), p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create pund: %w", err)
	}
	return nil
}

// GetPund retrieves a pund by ID.
func (q *queries) GetPund(ctx context.Context, id uuid.UUID) (*models.Pund, error) {
	p, err := scanPund(q.queryRow(ctx, `SELECT `+pundColumns+` FROM punds WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "pund")
	}
	return p, nil
}

// UpdatePund updates the mutable fields of a pund.
func (q *queries) UpdatePund(ctx context.Context, p *models.Pund) error {
	return q.execOne(ctx, "pund",
		`UPDATE punds SET name = ?, description = ?, is_active = ? WHERE id = ?`,
		p.Name, p.Description, p.IsActive, p.ID,
	)
}

// ListPunds retrieves every pund.
func (q *queries) ListPunds(ctx context.Context) ([]*models.Pund, error) {
	rows, err := q.query(ctx, `SELECT `+pundColumns+` FROM punds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list punds: %w", err)
	}
	defer rows.Close()

	var punds []*models.Pund
	for rows.Next() {
		p, err := scanPund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pund row: %w", err)
		}
		punds = append(punds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return punds, nil
}

// LockPund locks the pund row. SQLite transactions are opened IMMEDIATE, so
// there the writer lock is already held and this only checks existence.
func (q *queries) LockPund(ctx context.Context, id uuid.UUID) error {
	var got uuid.UUID
	err := q.queryRow(ctx, `SELECT id FROM punds WHERE id = ?`+q.dialect.lockClause, id).Scan(&got)
	if err != nil {
		return notFound(err, "pund")
	}
	return nil
}

// Memberships

const membershipSelect = `SELECT m.id, m.user_id, m.pund_id, m.role, m.is_active, m.joined_at, u.email, u.name
	FROM memberships m JOIN users u ON u.id = m.user_id`

func scanMembership(row scanner) (*models.Membership, error) {
	var m models.Membership
	if err := row.Scan(&m.ID, &m.UserID, &m.PundID, &m.Role, &m.IsActive, &m.JoinedAt, &m.Email, &m.Name); err != nil {
		return nil, err
	}
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}

func (q *queries) listMemberships(ctx context.Context, where string, arg any) ([]*models.Membership, error) {
	rows, err := q.query(ctx, membershipSelect+` WHERE `+where+` ORDER BY m.joined_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

// CreateMembership links a user to a pund.
func (q *queries) CreateMembership(ctx context.Context, m *models.Membership) error {
	_, err := q.exec(ctx,
		`INSERT INTO memberships (id, user_id, pund_id, role, is_active, joined_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.PundID, m.Role, m.IsActive, m.JoinedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// GetMembership retrieves the membership of a user in a pund.
func (q *queries) GetMembership(ctx context.Context, pundID, userID uuid.UUID) (*models.Membership, error) {
	m, err := scanMembership(q.queryRow(ctx, membershipSelect+` WHERE m.pund_id = ? AND m.user_id = ?`, pundID, userID))
	if err != nil {
		return nil, notFound(err, "membership")
	}
	return m, nil
}

// ListMemberships retrieves every membership of a pund, owner included.
func (q *queries) ListMemberships(ctx context.Context, pundID uuid.UUID) ([]*models.Membership, error) {
	return q.listMemberships(ctx, `m.pund_id = ?`, pundID)
}

// ListUserMemberships retrieves every membership held by a user.
func (q *queries) ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	return q.listMemberships(ctx, `m.user_id = ?`, userID)
}

// SetMembershipsActive toggles every membership of a pund.
func (q *queries) SetMembershipsActive(ctx context.Context, pundID uuid.UUID, active bool) error {
	if _, err := q.exec(ctx, `UPDATE memberships SET is_active = ? WHERE pund_id = ?`, active, pundID); err != nil {
		return fmt.Errorf("failed to update memberships: %w", err)
	}
	return nil
}

// Structures

const structureColumns = `id, pund_id, saving_amount, loan_interest_percentage, missed_saving_penalty, missed_loan_penalty, default_loan_cycles, effective_from, created_at`

func scanStructure(row scanner) (*models.Structure, error) {
	var s models.Structure
	if err := row.Scan(&s.ID, &s.PundID, &s.SavingAmount, &s.LoanInterestPercentage, &s.MissedSavingPenalty,
		&s.MissedLoanPenalty, &s.DefaultLoanCycles, &s.EffectiveFrom, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.EffectiveFrom = s.EffectiveFrom.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// CreateStructure inserts a new structure version.
func (q *queries) CreateStructure(ctx context.Context, s *models.Structure) error {
	_, err := q.exec(ctx,
		`INSERT INTO structures (`+structureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PundID, s.SavingAmount, s.LoanInterestPercentage, s.MissedSavingPenalty,
		s.MissedLoanPenalty, s.DefaultLoanCycles, s.EffectiveFrom.UTC(), s.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create structure: %w", err)
	}
	return nil
}

// UpdateStructure rewrites the rules of an existing version in place.
func (q *queries) UpdateStructure(ctx context.Context, s *models.Structure) error {
	return q.execOne(ctx, "structure",
		`UPDATE structures SET saving_amount = ?, loan_interest_percentage = ?, missed_saving_penalty = ?,
		missed_loan_penalty = ?, default_loan_cycles = ? WHERE id = ?`,
		s.SavingAmount, s.LoanInterestPercentage, s.MissedSavingPenalty, s.MissedLoanPenalty, s.DefaultLoanCycles, s.ID,
	)
}

// ListStructures retrieves every version of a pund's structure, newest first.
func (q *queries) ListStructures(ctx context.Context, pundID uuid.UUID) ([]*models.Structure, error) {
	rows, err := q.query(ctx,
		`SELECT `+structureColumns+` FROM structures WHERE pund_id = ? ORDER BY effective_from DESC`, pundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list structures: %w", err)
	}
	defer rows.Close()

	var out []*models.Structure
	for rows.Next() {
		s, err := scanStructure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan structure row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}
