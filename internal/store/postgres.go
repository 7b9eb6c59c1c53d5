package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID serialises concurrent Migrate calls across replicas.
const migrationLockID = 4_000_001

// dbtx is satisfied by both the pool and a transaction so read helpers can
// run inside or outside a locked section.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// clock returns the current time at the precision Postgres stores.
func (s *PostgresStore) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Migrate applies the embedded migrations newer than the recorded schema version.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	err = tx.QueryRow(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("invalid migration filename %s: %w", e.Name(), err)
		}
		if version <= current {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		if _, err := tx.Exec(ctx, `UPDATE schema_version SET version = $1`, version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		current = version
	}
	return tx.Commit(ctx)
}

// --- Initiatives ---

const initiativeColumns = `id, name, description, stage, status, health_status, risk_level,
	sow_reference, engagement_lead, project_manager, data_architect,
	start_date, target_date, created_at, updated_at`

func scanInitiative(row pgx.Row) (*domain.Initiative, error) {
	in := &domain.Initiative{}
	err := row.Scan(
		&in.ID, &in.Name, &in.Description, &in.Stage, &in.Status, &in.HealthStatus, &in.RiskLevel,
		&in.SOWReference, &in.EngagementLead, &in.ProjectManager, &in.DataArchitect,
		&in.StartDate, &in.TargetDate, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (s *PostgresStore) CreateInitiative(ctx context.Context, in *domain.Initiative) (*domain.Initiative, error) {
	rec := *in
	prepareInitiative(&rec, s.clock())

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO initiatives (`+initiativeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.Name, rec.Description, rec.Stage, rec.Status, rec.HealthStatus, rec.RiskLevel,
		rec.SOWReference, rec.EngagementLead, rec.ProjectManager, rec.DataArchitect,
		rec.StartDate, rec.TargetDate, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert initiative: %w", err)
	}

	for i, item := range rec.ChecklistItems {
		_, err := tx.Exec(ctx, `
			INSERT INTO checklist_items (id, initiative_id, stage, position, title, description, completed, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.InitiativeID, item.Stage, i, item.Title, item.Description, item.Completed, item.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert checklist item: %w", err)
		}
	}

	for _, h := range rec.StageHistory {
		if err := insertHistory(ctx, tx, h); err != nil {
			return nil, err
		}
	}

	sow := rec.ScopeOfWork
	_, err = tx.Exec(ctx, `
		INSERT INTO scopes_of_work (id, initiative_id, summary, deliverables, status, pm_owner, architect_owner)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sow.ID, sow.InitiativeID, sow.Summary, sow.Deliverables, sow.Status, sow.PMOwner, sow.ArchitectOwner,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scope of work: %w", err)
	}

	for _, a := range rec.Approvals {
		_, err := tx.Exec(ctx, `
			INSERT INTO stage_approvals (id, initiative_id, stage, role, approved)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ID, a.InitiativeID, a.Stage, a.Role, a.Approved,
		)
		if err != nil {
			return nil, fmt.Errorf("insert stage approval: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) GetInitiative(ctx context.Context, id uuid.UUID) (*domain.Initiative, error) {
	in, err := scanInitiative(s.pool.QueryRow(ctx, `SELECT `+initiativeColumns+` FROM initiatives WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Initiative")
	}
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, s.pool, []*domain.Initiative{in}); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *PostgresStore) ListInitiatives(ctx context.Context, filter InitiativeFilter) ([]*domain.Initiative, error) {
	query := `SELECT ` + initiativeColumns + ` FROM initiatives WHERE 1=1`
	args := []any{}
	n := 0

	if filter.Stage != nil {
		n++
		query += fmt.Sprintf(" AND stage = $%d", n)
		args = append(args, string(*filter.Stage))
	}
	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.HealthStatus != nil {
		n++
		query += fmt.Sprintf(" AND health_status = $%d", n)
		args = append(args, string(*filter.HealthStatus))
	}

	query += fmt.Sprintf(" ORDER BY array_position($%d::text[], status), array_position($%d::text[], risk_level) DESC, created_at DESC", n+1, n+2)
	args = append(args, enumNames(domain.InitiativeStatuses), enumNames(domain.RiskLevels))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Initiative{}
	for rows.Next() {
		in, err := scanInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, s.pool, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) UpdateInitiative(ctx context.Context, id uuid.UUID, patch InitiativePatch) (*domain.Initiative, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	in, err := scanInitiative(tx.QueryRow(ctx, `SELECT `+initiativeColumns+` FROM initiatives WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Initiative")
	}
	if err != nil {
		return nil, fmt.Errorf("lock initiative: %w", err)
	}

	applyPatch(in, patch)
	in.UpdatedAt = s.clock()

	_, err = tx.Exec(ctx, `
		UPDATE initiatives SET
			name = $2, description = $3, status = $4, health_status = $5, risk_level = $6,
			sow_reference = $7, engagement_lead = $8, project_manager = $9, data_architect = $10,
			start_date = $11, target_date = $12, updated_at = $13
		WHERE id = $1`,
		in.ID, in.Name, in.Description, in.Status, in.HealthStatus, in.RiskLevel,
		in.SOWReference, in.EngagementLead, in.ProjectManager, in.DataArchitect,
		in.StartDate, in.TargetDate, in.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update initiative: %w", err)
	}

	if ownersChanged(patch) {
		_, err = tx.Exec(ctx, `
			UPDATE scopes_of_work SET
				pm_owner = COALESCE(NULLIF($2, ''), pm_owner),
				architect_owner = COALESCE(NULLIF($3, ''), architect_owner)
			WHERE initiative_id = $1`,
			id, derefString(patch.ProjectManager), derefString(patch.DataArchitect),
		)
		if err != nil {
			return nil, fmt.Errorf("update scope owners: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetInitiative(ctx, id)
}

// --- Lifecycle (transactional) ---

// TransitionInitiative locks the initiative row, hands its lifecycle state to
// decide and, if decide returns a plan, records the move in the same
// transaction.
func (s *PostgresStore) TransitionInitiative(ctx context.Context, id uuid.UUID, decide domain.TransitionDecider) (*domain.Initiative, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	in, err := scanInitiative(tx.QueryRow(ctx, `SELECT `+initiativeColumns+` FROM initiatives WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Initiative")
	}
	if err != nil {
		return nil, fmt.Errorf("lock initiative: %w", err)
	}
	if err := loadChildren(ctx, tx, []*domain.Initiative{in}); err != nil {
		return nil, err
	}

	plan, err := decide(&domain.LifecycleState{
		InitiativeID:   in.ID,
		Stage:          in.Stage,
		Status:         in.Status,
		ChecklistItems: in.ChecklistItems,
		Approvals:      in.Approvals,
		ScopeOfWork:    in.ScopeOfWork,
	})
	if err != nil {
		return nil, err
	}

	entry := lifecycle.Apply(in, plan, s.clock())
	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE stage_approvals SET approved = FALSE, approved_by = NULL, approved_at = NULL, notes = NULL
		WHERE initiative_id = $1 AND stage = $2`, in.ID, plan.To)
	if err != nil {
		return nil, fmt.Errorf("reset approvals: %w", err)
	}
	_, err = tx.Exec(ctx, `UPDATE initiatives SET stage = $2, status = $3, updated_at = $4 WHERE id = $1`,
		in.ID, in.Stage, in.Status, in.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update stage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return in, nil
}

func insertHistory(ctx context.Context, q dbtx, h domain.StageHistory) error {
	_, err := q.Exec(ctx, `
		INSERT INTO stage_history (id, initiative_id, from_stage, to_stage, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.InitiativeID, h.FromStage, h.ToStage, h.Actor, h.Reason, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage history: %w", err)
	}
	return nil
}

const checklistColumns = `id, initiative_id, stage, title, description, completed, completed_at`

func scanChecklistItem(row pgx.Row) (domain.ChecklistItem, error) {
	var c domain.ChecklistItem
	err := row.Scan(&c.ID, &c.InitiativeID, &c.Stage, &c.Title, &c.Description, &c.Completed, &c.CompletedAt)
	return c, err
}

func (s *PostgresStore) UpdateChecklistItem(ctx context.Context, initiativeID, itemID uuid.UUID, mutate ChecklistMutator) (*domain.ChecklistItem, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item, err := scanChecklistItem(tx.QueryRow(ctx, `
		SELECT `+checklistColumns+` FROM checklist_items
		WHERE id = $1 AND initiative_id = $2 FOR UPDATE`, itemID, initiativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Checklist item")
	}
	if err != nil {
		return nil, fmt.Errorf("lock checklist item: %w", err)
	}
	if err := mutate(&item); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE checklist_items SET title = $2, description = $3, completed = $4, completed_at = $5
		WHERE id = $1`,
		item.ID, item.Title, item.Description, item.Completed, item.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update checklist item: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &item, nil
}

const approvalColumns = `id, initiative_id, stage, role, approved, approved_by, approved_at, notes`

func scanApproval(row pgx.Row) (domain.StageApproval, error) {
	var a domain.StageApproval
	err := row.Scan(&a.ID, &a.InitiativeID, &a.Stage, &a.Role, &a.Approved, &a.ApprovedBy, &a.ApprovedAt, &a.Notes)
	return a, err
}

func (s *PostgresStore) UpdateStageApproval(ctx context.Context, initiativeID, approvalID uuid.UUID, mutate ApprovalMutator) (*domain.StageApproval, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanApproval(tx.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM stage_approvals
		WHERE id = $1 AND initiative_id = $2 FOR UPDATE`, approvalID, initiativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Stage approval")
	}
	if err != nil {
		return nil, fmt.Errorf("lock stage approval: %w", err)
	}
	if err := mutate(&a); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE stage_approvals SET approved = $2, approved_by = $3, approved_at = $4, notes = $5
		WHERE id = $1`,
		a.ID, a.Approved, a.ApprovedBy, a.ApprovedAt, a.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("update stage approval: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListStageApprovals(ctx context.Context, initiativeID uuid.UUID) ([]domain.StageApproval, error) {
	if err := requireInitiative(ctx, s.pool, initiativeID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+approvalColumns+` FROM stage_approvals
		WHERE initiative_id = $1
		ORDER BY array_position($2::text[], stage), role DESC`, initiativeID, stageNames())
	if err != nil {
		return nil, err
	}
	return collect(rows, scanApproval)
}

// --- Scope of work ---

const scopeColumns = `id, initiative_id, summary, deliverables, status, pm_owner, architect_owner,
	pm_approved, pm_approved_at, architect_approved, architect_approved_at,
	signed_off_at, last_reviewed_at`

func scanScope(row pgx.Row) (domain.ScopeOfWork, error) {
	var sow domain.ScopeOfWork
	err := row.Scan(
		&sow.ID, &sow.InitiativeID, &sow.Summary, &sow.Deliverables, &sow.Status, &sow.PMOwner, &sow.ArchitectOwner,
		&sow.PMApproved, &sow.PMApprovedAt, &sow.ArchitectApproved, &sow.ArchitectApprovedAt,
		&sow.SignedOffAt, &sow.LastReviewedAt,
	)
	return sow, err
}

func (s *PostgresStore) GetScopeOfWork(ctx context.Context, initiativeID uuid.UUID) (*domain.ScopeOfWork, error) {
	sow, err := scanScope(s.pool.QueryRow(ctx, `SELECT `+scopeColumns+` FROM scopes_of_work WHERE initiative_id = $1`, initiativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Scope of Work")
	}
	if err != nil {
		return nil, err
	}
	return &sow, nil
}

func (s *PostgresStore) UpdateScopeOfWork(ctx context.Context, initiativeID uuid.UUID, mutate ScopeMutator) (*domain.ScopeOfWork, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sow, err := scanScope(tx.QueryRow(ctx, `SELECT `+scopeColumns+` FROM scopes_of_work WHERE initiative_id = $1 FOR UPDATE`, initiativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Scope of Work")
	}
	if err != nil {
		return nil, fmt.Errorf("lock scope of work: %w", err)
	}
	if err := mutate(&sow); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE scopes_of_work SET
			summary = $2, deliverables = $3, status = $4, pm_owner = $5, architect_owner = $6,
			pm_approved = $7, pm_approved_at = $8, architect_approved = $9, architect_approved_at = $10,
			signed_off_at = $11, last_reviewed_at = $12
		WHERE id = $1`,
		sow.ID, sow.Summary, sow.Deliverables, sow.Status, sow.PMOwner, sow.ArchitectOwner,
		sow.PMApproved, sow.PMApprovedAt, sow.ArchitectApproved, sow.ArchitectApprovedAt,
		sow.SignedOffAt, sow.LastReviewedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update scope of work: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &sow, nil
}

// --- Assets ---

const assetColumns = `a.id, a.initiative_id, a.name, a.type, a.owner_team, a.steward, a.acceptance_criteria, a.notes, a.created_at`

func scanAsset(row pgx.Row) (domain.DataAsset, error) {
	var a domain.DataAsset
	err := row.Scan(&a.ID, &a.InitiativeID, &a.Name, &a.Type, &a.OwnerTeam, &a.Steward, &a.AcceptanceCriteria, &a.Notes, &a.CreatedAt)
	return a, err
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *domain.DataAsset) error {
	a.ID = uuid.New()
	a.CreatedAt = s.clock()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO data_assets (id, initiative_id, name, type, owner_team, steward, acceptance_criteria, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.InitiativeID, a.Name, a.Type, a.OwnerTeam, a.Steward, a.AcceptanceCriteria, a.Notes, a.CreatedAt,
	)
	return translateInsert(err)
}

func (s *PostgresStore) ListAssetsForInitiative(ctx context.Context, initiativeID uuid.UUID) ([]domain.DataAsset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assetColumns+` FROM data_assets a
		WHERE a.initiative_id = $1 ORDER BY a.created_at DESC`, initiativeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAsset)
}

func (s *PostgresStore) ListAssets(ctx context.Context, filter AssetFilter) ([]domain.DataAsset, error) {
	query := `SELECT ` + assetColumns + `, i.id, i.name, i.stage, i.status
		FROM data_assets a JOIN initiatives i ON i.id = a.initiative_id`
	args := []any{}
	if filter.Type != nil {
		query += ` WHERE a.type = $1`
		args = append(args, string(*filter.Type))
	}
	query += ` ORDER BY a.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (domain.DataAsset, error) {
		var a domain.DataAsset
		sum := &domain.InitiativeSummary{}
		err := row.Scan(
			&a.ID, &a.InitiativeID, &a.Name, &a.Type, &a.OwnerTeam, &a.Steward, &a.AcceptanceCriteria, &a.Notes, &a.CreatedAt,
			&sum.ID, &sum.Name, &sum.Stage, &sum.Status,
		)
		a.Initiative = sum
		return a, err
	})
}

// --- Risks ---

const riskColumns = `id, initiative_id, title, description, severity, status, mitigation_plan, owner, identified_at, resolved_at`

func scanRisk(row pgx.Row) (domain.Risk, error) {
	var r domain.Risk
	err := row.Scan(&r.ID, &r.InitiativeID, &r.Title, &r.Description, &r.Severity, &r.Status,
		&r.MitigationPlan, &r.Owner, &r.IdentifiedAt, &r.ResolvedAt)
	return r, err
}

func (s *PostgresStore) CreateRisk(ctx context.Context, r *domain.Risk) error {
	r.ID = uuid.New()
	r.IdentifiedAt = s.clock()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO risks (`+riskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.InitiativeID, r.Title, r.Description, r.Severity, r.Status,
		r.MitigationPlan, r.Owner, r.IdentifiedAt, r.ResolvedAt,
	)
	return translateInsert(err)
}

func (s *PostgresStore) ListRisks(ctx context.Context, initiativeID uuid.UUID) ([]domain.Risk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+riskColumns+` FROM risks
		WHERE initiative_id = $1 ORDER BY identified_at DESC`, initiativeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRisk)
}

func (s *PostgresStore) UpdateRisk(ctx context.Context, initiativeID, riskID uuid.UUID, mutate RiskMutator) (*domain.Risk, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := scanRisk(tx.QueryRow(ctx, `
		SELECT `+riskColumns+` FROM risks
		WHERE id = $1 AND initiative_id = $2 FOR UPDATE`, riskID, initiativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Risk")
	}
	if err != nil {
		return nil, fmt.Errorf("lock risk: %w", err)
	}
	if err := mutate(&r); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE risks SET status = $2, mitigation_plan = $3, owner = $4, resolved_at = $5
		WHERE id = $1`,
		r.ID, r.Status, r.MitigationPlan, r.Owner, r.ResolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update risk: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &r, nil
}

// --- Dependencies ---

const dependencyColumns = `id, initiative_id, name, description, type, status, external_system, due_date, created_at`

func scanDependency(row pgx.Row) (domain.Dependency, error) {
	var d domain.Dependency
	err := row.Scan(&d.ID, &d.InitiativeID, &d.Name, &d.Description, &d.Type, &d.Status,
		&d.ExternalSystem, &d.DueDate, &d.CreatedAt)
	return d, err
}

func (s *PostgresStore) CreateDependency(ctx context.Context, d *domain.Dependency) error {
	d.ID = uuid.New()
	d.CreatedAt = s.clock()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dependencies (`+dependencyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.InitiativeID, d.Name, d.Description, d.Type, d.Status,
		d.ExternalSystem, d.DueDate, d.CreatedAt,
	)
	return translateInsert(err)
}

func (s *PostgresStore) ListDependencies(ctx context.Context, initiativeID uuid.UUID) ([]domain.Dependency, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+dependencyColumns+` FROM dependencies
		WHERE initiative_id = $1 ORDER BY created_at DESC`, initiativeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDependency)
}

func (s *PostgresStore) CountDependencies(ctx context.Context, status domain.DependencyStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dependencies WHERE status = $1`, status).Scan(&n)
	return n, err
}

// --- Team ---

const memberColumns = `m.id, m.name, m.email, m.role_title, m.team, m.onboarding_status, m.start_date`

func scanMember(row pgx.Row) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.RoleTitle, &m.Team, &m.OnboardingStatus, &m.StartDate)
	return m, err
}

func (s *PostgresStore) CreateTeamMember(ctx context.Context, tm *domain.TeamMember) error {
	tm.ID = uuid.New()
	tm.Email = strings.ToLower(tm.Email)
	if tm.OnboardingStatus == "" {
		tm.OnboardingStatus = domain.OnboardingAwaiting
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_members (id, name, email, role_title, team, onboarding_status, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tm.ID, tm.Name, tm.Email, tm.RoleTitle, tm.Team, tm.OnboardingStatus, tm.StartDate,
	)
	if isUniqueViolation(err) {
		return errDuplicateEmail
	}
	return err
}

func (s *PostgresStore) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM team_members m ORDER BY m.name ASC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMember)
}

func (s *PostgresStore) AssignMember(ctx context.Context, a *domain.InitiativeAssignment) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := requireInitiative(ctx, tx, a.InitiativeID); err != nil {
		return err
	}
	member, err := scanMember(tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM team_members m WHERE m.id = $1`, a.Member.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("Team member")
	}
	if err != nil {
		return err
	}

	a.ID = uuid.New()
	a.AssignedAt = s.clock()
	a.Member = member
	_, err = tx.Exec(ctx, `
		INSERT INTO initiative_assignments (id, initiative_id, member_id, responsibility, assigned_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.InitiativeID, member.ID, a.Responsibility, a.AssignedAt,
	)
	if isUniqueViolation(err) {
		return errAlreadyAssigned
	}
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) UpdateAssignedMember(ctx context.Context, initiativeID, memberID uuid.UUID, mutate MemberMutator) (*domain.TeamMember, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	member, err := scanMember(tx.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM team_members m JOIN initiative_assignments a ON a.member_id = m.id
		WHERE a.initiative_id = $1 AND m.id = $2
		FOR UPDATE OF m`, initiativeID, memberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Team member assignment")
	}
	if err != nil {
		return nil, fmt.Errorf("lock team member: %w", err)
	}
	if err := mutate(&member); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE team_members SET name = $2, role_title = $3, team = $4, onboarding_status = $5, start_date = $6
		WHERE id = $1`,
		member.ID, member.Name, member.RoleTitle, member.Team, member.OnboardingStatus, member.StartDate,
	)
	if err != nil {
		return nil, fmt.Errorf("update team member: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &member, nil
}

const accessColumns = `p.id, p.initiative_id, p.member_id, p.system_name, p.status, p.requested_at, p.fulfilled_at, p.notes`

func scanAccess(row pgx.Row) (domain.AccessProvision, error) {
	var p domain.AccessProvision
	m := &p.Member
	err := row.Scan(
		&p.ID, &p.InitiativeID, &p.MemberID, &p.SystemName, &p.Status, &p.RequestedAt, &p.FulfilledAt, &p.Notes,
		&m.ID, &m.Name, &m.Email, &m.RoleTitle, &m.Team, &m.OnboardingStatus, &m.StartDate,
	)
	return p, err
}

func (s *PostgresStore) RequestAccess(ctx context.Context, p *domain.AccessProvision) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := requireInitiative(ctx, tx, p.InitiativeID); err != nil {
		return err
	}
	member, err := scanMember(tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM team_members m WHERE m.id = $1`, p.MemberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("Team member")
	}
	if err != nil {
		return err
	}

	now := s.clock()
	p.ID = uuid.New()
	p.RequestedAt = &now
	if p.Status == "" {
		p.Status = domain.AccessRequested
	}
	p.Member = member
	_, err = tx.Exec(ctx, `
		INSERT INTO access_provisions (id, initiative_id, member_id, system_name, status, requested_at, fulfilled_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.InitiativeID, p.MemberID, p.SystemName, p.Status, p.RequestedAt, p.FulfilledAt, p.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) UpdateAccessProvision(ctx context.Context, initiativeID, accessID uuid.UUID, mutate AccessMutator) (*domain.AccessProvision, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanAccess(tx.QueryRow(ctx, `
		SELECT `+accessColumns+`, `+memberColumns+`
		FROM access_provisions p JOIN team_members m ON m.id = p.member_id
		WHERE p.id = $1 AND p.initiative_id = $2
		FOR UPDATE OF p`, accessID, initiativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("Access request")
	}
	if err != nil {
		return nil, fmt.Errorf("lock access request: %w", err)
	}
	if err := mutate(&p); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE access_provisions SET status = $2, fulfilled_at = $3, notes = $4
		WHERE id = $1`,
		p.ID, p.Status, p.FulfilledAt, p.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("update access request: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &p, nil
}

// --- helpers ---

// loadChildren fills every child collection of the given initiatives with one
// query per collection.
func loadChildren(ctx context.Context, q dbtx, list []*domain.Initiative) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	byID := make(map[uuid.UUID]*domain.Initiative, len(list))
	for i, in := range list {
		ids[i] = in.ID
		byID[in.ID] = in
		in.ChecklistItems = []domain.ChecklistItem{}
		in.StageHistory = []domain.StageHistory{}
		in.Approvals = []domain.StageApproval{}
		in.Assets = []domain.DataAsset{}
		in.Risks = []domain.Risk{}
		in.Dependencies = []domain.Dependency{}
		in.Assignments = []domain.InitiativeAssignment{}
		in.AccessRequests = []domain.AccessProvision{}
	}

	items, err := queryAll(ctx, q, scanChecklistItem, `
		SELECT `+checklistColumns+` FROM checklist_items
		WHERE initiative_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return fmt.Errorf("load checklist: %w", err)
	}
	for _, c := range items {
		in := byID[c.InitiativeID]
		in.ChecklistItems = append(in.ChecklistItems, c)
	}

	history, err := queryAll(ctx, q, func(row pgx.Row) (domain.StageHistory, error) {
		var h domain.StageHistory
		err := row.Scan(&h.ID, &h.InitiativeID, &h.FromStage, &h.ToStage, &h.Actor, &h.Reason, &h.CreatedAt)
		return h, err
	}, `
		SELECT id, initiative_id, from_stage, to_stage, actor, reason, created_at
		FROM stage_history WHERE initiative_id = ANY($1) ORDER BY created_at ASC`, ids)
	if err != nil {
		return fmt.Errorf("load stage history: %w", err)
	}
	for _, h := range history {
		in := byID[h.InitiativeID]
		in.StageHistory = append(in.StageHistory, h)
	}

	approvals, err := queryAll(ctx, q, scanApproval, `
		SELECT `+approvalColumns+` FROM stage_approvals
		WHERE initiative_id = ANY($1)
		ORDER BY array_position($2::text[], stage), role DESC`, ids, stageNames())
	if err != nil {
		return fmt.Errorf("load approvals: %w", err)
	}
	for _, a := range approvals {
		in := byID[a.InitiativeID]
		in.Approvals = append(in.Approvals, a)
	}

	scopes, err := queryAll(ctx, q, scanScope, `SELECT `+scopeColumns+` FROM scopes_of_work WHERE initiative_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load scope of work: %w", err)
	}
	for i := range scopes {
		byID[scopes[i].InitiativeID].ScopeOfWork = &scopes[i]
	}

	assets, err := queryAll(ctx, q, scanAsset, `
		SELECT `+assetColumns+` FROM data_assets a
		WHERE a.initiative_id = ANY($1) ORDER BY a.created_at DESC`, ids)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	for _, a := range assets {
		in := byID[a.InitiativeID]
		in.Assets = append(in.Assets, a)
	}

	risks, err := queryAll(ctx, q, scanRisk, `
		SELECT `+riskColumns+` FROM risks
		WHERE initiative_id = ANY($1) ORDER BY identified_at DESC`, ids)
	if err != nil {
		return fmt.Errorf("load risks: %w", err)
	}
	for _, r := range risks {
		in := byID[r.InitiativeID]
		in.Risks = append(in.Risks, r)
	}

	deps, err := queryAll(ctx, q, scanDependency, `
		SELECT `+dependencyColumns+` FROM dependencies
		WHERE initiative_id = ANY($1) ORDER BY created_at DESC`, ids)
	if err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	for _, d := range deps {
		in := byID[d.InitiativeID]
		in.Dependencies = append(in.Dependencies, d)
	}

	assignments, err := queryAll(ctx, q, func(row pgx.Row) (domain.InitiativeAssignment, error) {
		var a domain.InitiativeAssignment
		m := &a.Member
		err := row.Scan(&a.ID, &a.InitiativeID, &a.Responsibility, &a.AssignedAt,
			&m.ID, &m.Name, &m.Email, &m.RoleTitle, &m.Team, &m.OnboardingStatus, &m.StartDate)
		return a, err
	}, `
		SELECT a.id, a.initiative_id, a.responsibility, a.assigned_at, `+memberColumns+`
		FROM initiative_assignments a JOIN team_members m ON m.id = a.member_id
		WHERE a.initiative_id = ANY($1) ORDER BY a.assigned_at ASC`, ids)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	for _, a := range assignments {
		in := byID[a.InitiativeID]
		in.Assignments = append(in.Assignments, a)
	}

	access, err := queryAll(ctx, q, scanAccess, `
		SELECT `+accessColumns+`, `+memberColumns+`
		FROM access_provisions p JOIN team_members m ON m.id = p.member_id
		WHERE p.initiative_id = ANY($1) ORDER BY p.requested_at DESC NULLS LAST`, ids)
	if err != nil {
		return fmt.Errorf("load access requests: %w", err)
	}
	for _, p := range access {
		in := byID[p.InitiativeID]
		in.AccessRequests = append(in.AccessRequests, p)
	}
	return nil
}

func queryAll[T any](ctx context.Context, q dbtx, scan func(pgx.Row) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scan)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func requireInitiative(ctx context.Context, q dbtx, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM initiatives WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.NotFound("Initiative")
	}
	return nil
}

// translateInsert maps a foreign key violation on initiative_id to not found.
func translateInsert(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return domain.NotFound("Initiative")
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func stageNames() []string {
	return enumNames(lifecycle.Sequence)
}

func enumNames[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
