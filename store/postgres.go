package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lead-routing/errors"
	"lead-routing/models"

	"github.com/lib/pq"
)

// PostgresStore persists through lib/pq. Each InTx runs in one READ COMMITTED
// transaction; LockInstitution takes a row lock on the institution.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const leadColumns = `l.id, l.institution_id, l.first_name, l.last_name, l.email, l.phone,
	l.course_interest, l.source, l.priority, l.budget_range, l.qualification, l.notes,
	l.status, l.score, l.assigned_counselor_id, l.assigned_at, l.completed_at,
	l.created_at, l.updated_at, q.position`

const leadFrom = `FROM leads l LEFT JOIN queue_entries q ON q.lead_id = l.id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row scanner) (models.Lead, error) {
	var (
		l           models.Lead
		source      string
		priority    string
		status      string
		counselorID sql.NullString
		assignedAt  sql.NullTime
		completedAt sql.NullTime
		position    sql.NullInt64
	)
	err := row.Scan(
		&l.ID, &l.InstitutionID, &l.FirstName, &l.LastName, &l.Email, &l.Phone,
		&l.CourseInterest, &source, &priority, &l.BudgetRange, &l.Qualification, &l.Notes,
		&status, &l.Score, &counselorID, &assignedAt, &completedAt,
		&l.CreatedAt, &l.UpdatedAt, &position,
	)
	if err != nil {
		return models.Lead{}, err
	}
	l.Source = models.LeadSource(source)
	l.Priority = models.Priority(priority)
	l.Status = models.LeadStatus(status)
	if counselorID.Valid {
		id := counselorID.String
		l.AssignedCounselorID = &id
	}
	if assignedAt.Valid {
		t := assignedAt.Time
		l.AssignedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		l.CompletedAt = &t
	}
	if position.Valid {
		p := int(position.Int64)
		l.QueuePosition = &p
	}
	return l, nil
}

func getInstitution(ctx context.Context, q querier, id string, forUpdate bool) (models.Institution, error) {
	query := `SELECT id, name, is_active, created_at FROM institutions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var inst models.Institution
	err := q.QueryRowContext(ctx, query, id).Scan(&inst.ID, &inst.Name, &inst.IsActive, &inst.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Institution{}, errors.NewNotFoundError("institution not found: " + id)
	}
	if err != nil {
		return models.Institution{}, errors.E(errors.Internal, "error loading institution", err)
	}
	return inst, nil
}

func getLead(ctx context.Context, q querier, id string) (models.Lead, error) {
	row := q.QueryRowContext(ctx, `SELECT `+leadColumns+` `+leadFrom+` WHERE l.id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return models.Lead{}, errors.NewNotFoundError("lead not found: " + id)
	}
	if err != nil {
		return models.Lead{}, errors.E(errors.Internal, "error loading lead", err)
	}
	return l, nil
}

func findLeads(ctx context.Context, q querier, institutionID string, status models.LeadStatus) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` ` + leadFrom + ` WHERE l.institution_id = $1`
	args := []interface{}{institutionID}
	if status != "" {
		query += ` AND l.status = $2`
		args = append(args, string(status))
	}
	return queryLeads(ctx, q, query+` ORDER BY l.created_at, l.id`, args...)
}

func findLeadsByCounselor(ctx context.Context, q querier, counselorID string) ([]models.Lead, error) {
	return queryLeads(ctx, q, `SELECT `+leadColumns+` `+leadFrom+`
		WHERE l.assigned_counselor_id = $1 ORDER BY l.created_at, l.id`, counselorID)
}

func queryLeads(ctx context.Context, q querier, query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.E(errors.Internal, "error listing leads", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, errors.E(errors.Internal, "error scanning lead", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.Internal, "error listing leads", err)
	}
	return leads, nil
}

func loadQueue(ctx context.Context, q querier, institutionID string) ([]models.QueueEntry, error) {
	if _, err := getInstitution(ctx, q, institutionID, false); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT lead_id, position, tier, score, lead_created_at
		FROM queue_entries
		WHERE institution_id = $1
		ORDER BY position`, institutionID)
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading queue", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.LeadID, &e.Position, &e.Key.Tier, &e.Key.Score, &e.Key.CreatedAt); err != nil {
			return nil, errors.E(errors.Internal, "error scanning queue entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.Internal, "error loading queue", err)
	}
	return entries, nil
}

func getCounselor(ctx context.Context, q querier, id string) (models.Counselor, error) {
	var c models.Counselor
	err := q.QueryRowContext(ctx, `
		SELECT id, institution_id, name, email, is_active, max_capacity
		FROM counselors WHERE id = $1`, id).
		Scan(&c.ID, &c.InstitutionID, &c.Name, &c.Email, &c.IsActive, &c.MaxCapacity)
	if err == sql.ErrNoRows {
		return models.Counselor{}, errors.NewNotFoundError("counselor not found: " + id)
	}
	if err != nil {
		return models.Counselor{}, errors.E(errors.Internal, "error loading counselor", err)
	}
	return c, nil
}

func listCounselors(ctx context.Context, q querier, institutionID string) ([]models.Counselor, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, institution_id, name, email, is_active, max_capacity
		FROM counselors WHERE institution_id = $1 ORDER BY id`, institutionID)
	if err != nil {
		return nil, errors.E(errors.Internal, "error listing counselors", err)
	}
	defer rows.Close()

	var out []models.Counselor
	for rows.Next() {
		var c models.Counselor
		if err := rows.Scan(&c.ID, &c.InstitutionID, &c.Name, &c.Email, &c.IsActive, &c.MaxCapacity); err != nil {
			return nil, errors.E(errors.Internal, "error scanning counselor", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func activeStatusArray() pq.StringArray {
	out := make(pq.StringArray, len(models.ActiveStatuses))
	for i, s := range models.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func countActiveLeads(ctx context.Context, q querier, counselorID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leads
		WHERE assigned_counselor_id = $1 AND status = ANY($2)`,
		counselorID, activeStatusArray()).Scan(&n)
	if err != nil {
		return 0, errors.E(errors.Internal, "error counting active leads", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (p *PostgresStore) GetInstitution(ctx context.Context, id string) (models.Institution, error) {
	return getInstitution(ctx, p.db, id, false)
}

func (p *PostgresStore) GetLead(ctx context.Context, id string) (models.Lead, error) {
	return getLead(ctx, p.db, id)
}

func (p *PostgresStore) FindLeads(ctx context.Context, institutionID string, status models.LeadStatus) ([]models.Lead, error) {
	return findLeads(ctx, p.db, institutionID, status)
}

func (p *PostgresStore) FindLeadsByCounselor(ctx context.Context, counselorID string) ([]models.Lead, error) {
	return findLeadsByCounselor(ctx, p.db, counselorID)
}

func (p *PostgresStore) LoadQueue(ctx context.Context, institutionID string) ([]models.QueueEntry, error) {
	return loadQueue(ctx, p.db, institutionID)
}

func (p *PostgresStore) GetCounselor(ctx context.Context, id string) (models.Counselor, error) {
	return getCounselor(ctx, p.db, id)
}

func (p *PostgresStore) ListCounselors(ctx context.Context, institutionID string) ([]models.Counselor, error) {
	return listCounselors(ctx, p.db, institutionID)
}

func (p *PostgresStore) CountActiveLeads(ctx context.Context, counselorID string) (int, error) {
	return countActiveLeads(ctx, p.db, counselorID)
}

func (p *PostgresStore) SaveInstitution(ctx context.Context, inst models.Institution) error {
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO institutions (id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active`,
		inst.ID, inst.Name, inst.IsActive, inst.CreatedAt)
	if err != nil {
		return errors.E(errors.Internal, "error saving institution", err)
	}
	return nil
}

func (p *PostgresStore) SaveCounselor(ctx context.Context, c models.Counselor) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO counselors (id, institution_id, name, email, is_active, max_capacity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			institution_id = EXCLUDED.institution_id,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			is_active = EXCLUDED.is_active,
			max_capacity = EXCLUDED.max_capacity`,
		c.ID, c.InstitutionID, c.Name, c.Email, c.IsActive, c.MaxCapacity)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return errors.NewNotFoundError("institution not found: " + c.InstitutionID)
		}
		return errors.E(errors.Internal, "error saving counselor", err)
	}
	return nil
}

func (p *PostgresStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.Timestamp)
	if err != nil {
		return errors.E(errors.Internal, "error writing audit entry", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.E(errors.Internal, "error starting transaction", err)
	}
	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errors.E(errors.Internal, "error committing transaction", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetInstitution(ctx context.Context, id string) (models.Institution, error) {
	return getInstitution(ctx, t.tx, id, false)
}

func (t *pgTx) LockInstitution(ctx context.Context, id string) (models.Institution, error) {
	return getInstitution(ctx, t.tx, id, true)
}

func (t *pgTx) GetLead(ctx context.Context, id string) (models.Lead, error) {
	return getLead(ctx, t.tx, id)
}

func (t *pgTx) FindLeads(ctx context.Context, institutionID string, status models.LeadStatus) ([]models.Lead, error) {
	return findLeads(ctx, t.tx, institutionID, status)
}

func (t *pgTx) FindLeadsByCounselor(ctx context.Context, counselorID string) ([]models.Lead, error) {
	return findLeadsByCounselor(ctx, t.tx, counselorID)
}

func (t *pgTx) LoadQueue(ctx context.Context, institutionID string) ([]models.QueueEntry, error) {
	return loadQueue(ctx, t.tx, institutionID)
}

func (t *pgTx) GetCounselor(ctx context.Context, id string) (models.Counselor, error) {
	return getCounselor(ctx, t.tx, id)
}

func (t *pgTx) ListCounselors(ctx context.Context, institutionID string) ([]models.Counselor, error) {
	return listCounselors(ctx, t.tx, institutionID)
}

func (t *pgTx) CountActiveLeads(ctx context.Context, counselorID string) (int, error) {
	return countActiveLeads(ctx, t.tx, counselorID)
}

func (t *pgTx) SaveLead(ctx context.Context, l *models.Lead) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO leads (
			id, institution_id, first_name, last_name, email, phone, course_interest,
			source, priority, budget_range, qualification, notes, status, score,
			assigned_counselor_id, assigned_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			course_interest = EXCLUDED.course_interest,
			source = EXCLUDED.source,
			priority = EXCLUDED.priority,
			budget_range = EXCLUDED.budget_range,
			qualification = EXCLUDED.qualification,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			assigned_counselor_id = EXCLUDED.assigned_counselor_id,
			assigned_at = EXCLUDED.assigned_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		l.ID, l.InstitutionID, l.FirstName, l.LastName, l.Email, l.Phone, l.CourseInterest,
		string(l.Source), string(l.Priority), l.BudgetRange, l.Qualification, l.Notes,
		string(l.Status), l.Score, nullString(l.AssignedCounselorID), nullTime(l.AssignedAt),
		nullTime(l.CompletedAt), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return errors.E(errors.NotFound, "referenced institution or counselor not found", err)
		}
		return errors.E(errors.Internal, "error saving lead", err)
	}
	return nil
}

// DeleteLead refuses a queued lead rather than letting the cascade leave a
// gap in the queue positions.
func (t *pgTx) DeleteLead(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM leads l
		WHERE l.id = $1 AND NOT EXISTS (SELECT 1 FROM queue_entries q WHERE q.lead_id = l.id)`, id)
	if err != nil {
		return errors.E(errors.Internal, "error deleting lead", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.E(errors.Internal, "error deleting lead", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := getLead(ctx, t.tx, id); err != nil {
		return err
	}
	return errors.NewInternalError("cannot delete queued lead: " + id)
}

// SaveQueue rewrites the institution's queue rows with COPY.
func (t *pgTx) SaveQueue(ctx context.Context, institutionID string, entries []models.QueueEntry) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE institution_id = $1`, institutionID); err != nil {
		return errors.E(errors.Internal, "error clearing queue", err)
	}
	if len(entries) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, pq.CopyIn("queue_entries",
		"institution_id", "lead_id", "position", "tier", "score", "lead_created_at"))
	if err != nil {
		return errors.E(errors.Internal, "error preparing queue copy", err)
	}
	for _, e := range renumber(entries) {
		if _, err := stmt.ExecContext(ctx, institutionID, e.LeadID, e.Position, e.Key.Tier, e.Key.Score, e.Key.CreatedAt); err != nil {
			stmt.Close()
			return errors.E(errors.Internal, "error copying queue entry", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.E(errors.Internal, "duplicate lead in queue", err)
		}
		return errors.E(errors.Internal, "error flushing queue copy", err)
	}
	if err := stmt.Close(); err != nil {
		return errors.E(errors.Internal, "error closing queue copy", err)
	}
	return nil
}
