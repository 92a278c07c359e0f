package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/pkg/pagination"
	"github.com/veriflow-id/veriflow/pkg/repository"
)

// postgresStore is the production Store backed by PostgreSQL. The
// expected-stage check in AppendTransition rides on the UPDATE's WHERE
// clause, so two racing transitions can never both apply.
type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed application store.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

const applicationColumns = `id, user_id, stage, status, extracted_fields, outcome, outcome_reason, created_at, updated_at`

func scanApplication(s repository.Scanner) (Application, error) {
	var (
		app    Application
		fields []byte
	)

	err := s.Scan(
		&app.ID,
		&app.UserID,
		&app.Stage,
		&app.Status,
		&fields,
		&app.Outcome,
		&app.OutcomeReason,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return Application{}, err
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &app.ExtractedFields); err != nil {
			return Application{}, fmt.Errorf("unmarshal extracted_fields: %w", err)
		}
	}

	app.StageHistory = []Transition{}
	return app, nil
}

func scanTransition(s repository.Scanner) (Transition, error) {
	var (
		t      Transition
		detail []byte
	)

	err := s.Scan(
		&t.ID,
		&t.ApplicationID,
		&t.Stage,
		&t.Status,
		&detail,
		&t.CreatedAt,
	)
	if err != nil {
		return Transition{}, err
	}

	if len(detail) > 0 {
		t.Detail = json.RawMessage(detail)
	}
	return t, nil
}

func (s *postgresStore) Create(ctx context.Context, userID uuid.UUID) (*Application, error) {
	query := fmt.Sprintf(`
		INSERT INTO applications (id, user_id, stage, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING %s`, applicationColumns)

	now := time.Now().UTC()
	app, err := repository.QueryOne(ctx, s.db, query,
		[]any{uuid.New(), userID, StageOCRProcessing, StatusInitiated, now},
		scanApplication)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}

	return &app, nil
}

func (s *postgresStore) Find(ctx context.Context, id uuid.UUID) (*Application, error) {
	return s.find(ctx, s.db, id)
}

func (s *postgresStore) find(ctx context.Context, q repository.Querier, id uuid.UUID) (*Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)

	app, err := repository.QueryOne(ctx, q, query, []any{id}, scanApplication)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}

	history, err := s.transitions(ctx, q, id)
	if err != nil {
		return nil, err
	}
	app.StageHistory = history

	return &app, nil
}

func (s *postgresStore) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[Application], error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM applications
		WHERE user_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, applicationColumns)

	items, err := repository.QueryMany(ctx, s.db, query,
		[]any{userID, page.PageSize, page.Offset()},
		scanApplication)
	if err != nil {
		return nil, err
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (s *postgresStore) Transitions(ctx context.Context, id uuid.UUID) ([]Transition, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	return s.transitions(ctx, s.db, id)
}

func (s *postgresStore) transitions(ctx context.Context, q repository.Querier, id uuid.UUID) ([]Transition, error) {
	query := `
		SELECT id, application_id, stage, status, detail, created_at
		FROM application_transitions
		WHERE application_id = $1
		ORDER BY created_at, id`

	history, err := repository.QueryMany(ctx, q, query, []any{id}, scanTransition)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []Transition{}
	}
	return history, nil
}

func (s *postgresStore) AppendTransition(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Application, error) {
	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) (*Application, error) {
		var (
			currentStage Stage
			hasOutcome   bool
		)
		err := tx.QueryRowContext(ctx, `
			SELECT stage, outcome IS NOT NULL
			FROM applications
			WHERE id = $1
			FOR UPDATE`, id).Scan(&currentStage, &hasOutcome)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrConflict)
		}

		if currentStage != cmd.ExpectedStage {
			return nil, ErrConflict
		}
		if cmd.Outcome != nil && hasOutcome {
			return nil, ErrConflict
		}

		now := time.Now().UTC()

		var detail []byte
		if cmd.Detail != nil {
			detail, err = json.Marshal(cmd.Detail)
			if err != nil {
				return nil, fmt.Errorf("marshal detail: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO application_transitions (id, application_id, stage, status, detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), id, cmd.Stage, cmd.EntryStatus, detail, now)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrConflict)
		}

		var fields []byte
		if cmd.Fields != nil {
			fields, err = json.Marshal(cmd.Fields)
			if err != nil {
				return nil, fmt.Errorf("marshal extracted_fields: %w", err)
			}
		}

		err = repository.ExecExpectOne(ctx, tx, `
			UPDATE applications
			SET stage = $3,
			    status = $4,
			    outcome = COALESCE($5, outcome),
			    outcome_reason = COALESCE($6, outcome_reason),
			    extracted_fields = COALESCE($7, extracted_fields),
			    updated_at = $8
			WHERE id = $1 AND stage = $2`,
			id, cmd.ExpectedStage, cmd.NextStage, cmd.Status,
			cmd.Outcome, cmd.OutcomeReason, fields, now)
		if err != nil {
			return nil, repository.MapError(err, ErrConflict, ErrConflict)
		}

		return s.find(ctx, tx, id)
	})
}
