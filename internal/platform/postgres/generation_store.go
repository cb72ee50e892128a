package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// PostgresGenerationStore implements store.GenerationStore.
//
// Generations live in the generations table with their variant snapshot as
// JSONB; tasks live in generation_tasks ordered by position.
type PostgresGenerationStore struct {
	db     store.DBTX
	sqlDB  *sql.DB // nil when bound to an outer transaction
	logger *slog.Logger
}

var _ store.GenerationStore = (*PostgresGenerationStore)(nil)

// NewPostgresGenerationStore creates a generation store over db.
func NewPostgresGenerationStore(db *sql.DB, logger *slog.Logger) *PostgresGenerationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGenerationStore{
		db:     db,
		sqlDB:  db,
		logger: logger.With(slog.String("component", "generation_store")),
	}
}

// WithTx returns a store that runs its queries on tx.
func (s *PostgresGenerationStore) WithTx(tx *sql.Tx) *PostgresGenerationStore {
	return &PostgresGenerationStore{db: tx, logger: s.logger}
}

// atomically runs fn in a transaction, or directly when already inside one.
func (s *PostgresGenerationStore) atomically(ctx context.Context, fn func(ctx context.Context, db store.DBTX) error) error {
	if s.sqlDB == nil {
		return fn(ctx, s.db)
	}
	return store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

// Create implements store.GenerationStore.
func (s *PostgresGenerationStore) Create(ctx context.Context, g *domain.Generation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := g.Validate(); err != nil {
		return err
	}

	variants, err := json.Marshal(g.Variants)
	if err != nil {
		return fmt.Errorf("failed to encode variants: %w", err)
	}

	err = s.atomically(ctx, func(ctx context.Context, db store.DBTX) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO generations (id, name, template_id, model, rate_limit, variants, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, g.ID, g.Name, g.TemplateID, string(g.Model), g.RateLimit, string(variants), g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return MapError(err, store.ErrGenerationNotFound)
		}
		return insertTasks(ctx, db, g)
	})
	if err != nil {
		log.Error("failed to create generation",
			slog.String("generation_id", g.ID.String()),
			slog.Any("error", err))
		return err
	}

	log.Debug("generation created",
		slog.String("generation_id", g.ID.String()),
		slog.Int("tasks", len(g.Tasks)))
	return nil
}

// GetByID implements store.GenerationStore.
func (s *PostgresGenerationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, template_id, model, rate_limit, variants, created_at, updated_at
		FROM generations WHERE id = $1
	`, id)

	g, err := scanGeneration(row)
	if err != nil {
		return nil, err
	}

	tasks, err := s.loadTasks(ctx, `WHERE generation_id = $1`, id)
	if err != nil {
		return nil, err
	}
	g.Tasks = tasks[g.ID]
	if g.Tasks == nil {
		g.Tasks = []*domain.GenerationTask{}
	}
	return g, nil
}

// List implements store.GenerationStore.
func (s *PostgresGenerationStore) List(ctx context.Context) ([]*domain.Generation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, template_id, model, rate_limit, variants, created_at, updated_at
		FROM generations ORDER BY created_at DESC
	`)
	if err != nil {
		log.Error("failed to list generations", slog.Any("error", err))
		return nil, MapError(err, nil)
	}
	defer func() { _ = rows.Close() }()

	generations := make([]*domain.Generation, 0)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		generations = append(generations, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation rows: %w", err)
	}

	tasks, err := s.loadTasks(ctx, ``)
	if err != nil {
		return nil, err
	}
	for _, g := range generations {
		g.Tasks = tasks[g.ID]
		if g.Tasks == nil {
			g.Tasks = []*domain.GenerationTask{}
		}
	}
	return generations, nil
}

// Save implements store.GenerationStore.
func (s *PostgresGenerationStore) Save(ctx context.Context, g *domain.Generation) error {
	if err := g.Validate(); err != nil {
		return err
	}

	variants, err := json.Marshal(g.Variants)
	if err != nil {
		return fmt.Errorf("failed to encode variants: %w", err)
	}

	return s.atomically(ctx, func(ctx context.Context, db store.DBTX) error {
		result, err := db.ExecContext(ctx, `
			UPDATE generations
			SET name = $2, model = $3, rate_limit = $4, variants = $5, updated_at = $6
			WHERE id = $1
		`, g.ID, g.Name, string(g.Model), g.RateLimit, string(variants), g.UpdatedAt)
		if err != nil {
			return MapError(err, store.ErrGenerationNotFound)
		}
		if err := CheckRowsAffected(result, store.ErrGenerationNotFound); err != nil {
			return err
		}

		if _, err := db.ExecContext(ctx, `DELETE FROM generation_tasks WHERE generation_id = $1`, g.ID); err != nil {
			return MapError(err, store.ErrGenerationNotFound)
		}
		return insertTasks(ctx, db, g)
	})
}

// UpdateTask implements store.GenerationStore.
func (s *PostgresGenerationStore) UpdateTask(ctx context.Context, task *domain.GenerationTask) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = $3, result = $4, error = $5, message_id = $6, retry_count = $7, completed_at = $8
		WHERE id = $1 AND generation_id = $2
	`,
		task.ID,
		task.GenerationID,
		string(task.Status),
		nullString(task.Result),
		nullString(task.Error),
		nullString(task.MessageID),
		task.RetryCount,
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return MapError(err, store.ErrTaskNotFound)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.GenerationStore.
func (s *PostgresGenerationStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE id = $1`, id)
	if err != nil {
		return MapError(err, store.ErrGenerationNotFound)
	}
	return CheckRowsAffected(result, store.ErrGenerationNotFound)
}

// ResetProcessingTasks implements store.GenerationStore.
func (s *PostgresGenerationStore) ResetProcessingTasks(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = 'pending', retry_count = retry_count + 1
		WHERE status = 'processing'
	`)
	if err != nil {
		log.Error("failed to reset processing tasks", slog.Any("error", err))
		return 0, MapError(err, nil)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		log.Info("reset interrupted tasks to pending", slog.Int64("count", n))
	}
	return int(n), nil
}

func insertTasks(ctx context.Context, db store.DBTX, g *domain.Generation) error {
	for i, t := range g.Tasks {
		_, err := db.ExecContext(ctx, `
			INSERT INTO generation_tasks
				(id, generation_id, position, variant_id, prompt, status, result, error, message_id, retry_count, created_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			t.ID,
			g.ID,
			i,
			t.VariantID,
			t.Prompt,
			string(t.Status),
			nullString(t.Result),
			nullString(t.Error),
			nullString(t.MessageID),
			t.RetryCount,
			t.CreatedAt,
			nullTime(t.CompletedAt),
		)
		if err != nil {
			return MapError(err, store.ErrGenerationNotFound)
		}
	}
	return nil
}

// loadTasks returns tasks grouped by generation, each group in list order.
func (s *PostgresGenerationStore) loadTasks(ctx context.Context, where string, args ...any) (map[uuid.UUID][]*domain.GenerationTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generation_id, variant_id, prompt, status, result, error, message_id, retry_count, created_at, completed_at
		FROM generation_tasks `+where+`
		ORDER BY generation_id, position
	`, args...)
	if err != nil {
		return nil, MapError(err, nil)
	}
	defer func() { _ = rows.Close() }()

	grouped := make(map[uuid.UUID][]*domain.GenerationTask)
	for rows.Next() {
		var (
			t                       domain.GenerationTask
			status                  string
			result, errMsg, message sql.NullString
			completedAt             sql.NullTime
		)
		if err := rows.Scan(
			&t.ID, &t.GenerationID, &t.VariantID, &t.Prompt, &status,
			&result, &errMsg, &message, &t.RetryCount, &t.CreatedAt, &completedAt,
		); err != nil {
			return nil, MapError(err, store.ErrTaskNotFound)
		}
		t.Status = domain.TaskStatus(status)
		t.Result = result.String
		t.Error = errMsg.String
		t.MessageID = message.String
		if completedAt.Valid {
			at := completedAt.Time.UTC()
			t.CompletedAt = &at
		}
		grouped[t.GenerationID] = append(grouped[t.GenerationID], &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return grouped, nil
}

func scanGeneration(row rowScanner) (*domain.Generation, error) {
	var (
		g        domain.Generation
		model    string
		variants []byte
	)
	if err := row.Scan(&g.ID, &g.Name, &g.TemplateID, &model, &g.RateLimit, &variants, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGenerationNotFound
		}
		return nil, MapError(err, store.ErrGenerationNotFound)
	}
	g.Model = domain.ModelSelector(model)
	if err := json.Unmarshal(variants, &g.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode variants: %w", err)
	}
	if g.Variants == nil {
		g.Variants = []domain.Variant{}
	}
	return &g, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
