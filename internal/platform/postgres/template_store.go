package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// PostgresTemplateStore implements store.TemplateStore.
type PostgresTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.TemplateStore = (*PostgresTemplateStore)(nil)

// NewPostgresTemplateStore creates a template store over db.
func NewPostgresTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresTemplateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "template_store")),
	}
}

// WithTx returns a store that runs its queries on tx.
func (s *PostgresTemplateStore) WithTx(tx *sql.Tx) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: tx, logger: s.logger}
}

const templateColumns = `id, name, content, created_at, updated_at`

// Create implements store.TemplateStore.
func (s *PostgresTemplateStore) Create(ctx context.Context, t *domain.Template) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := t.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Content, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		log.Error("failed to create template",
			slog.String("template_id", t.ID.String()),
			slog.Any("error", err))
		return MapError(err, store.ErrTemplateNotFound)
	}
	return nil
}

// GetByID implements store.TemplateStore.
func (s *PostgresTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	return scanTemplate(row)
}

// List implements store.TemplateStore.
func (s *PostgresTemplateStore) List(ctx context.Context) ([]*domain.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, MapError(err, nil)
	}
	defer func() { _ = rows.Close() }()

	templates := make([]*domain.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template rows: %w", err)
	}
	return templates, nil
}

// Update implements store.TemplateStore.
func (s *PostgresTemplateStore) Update(ctx context.Context, t *domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE templates SET name = $2, content = $3, updated_at = $4
		WHERE id = $1
	`, t.ID, t.Name, t.Content, t.UpdatedAt)
	if err != nil {
		return MapError(err, store.ErrTemplateNotFound)
	}
	return CheckRowsAffected(result, store.ErrTemplateNotFound)
}

// Delete implements store.TemplateStore.
func (s *PostgresTemplateStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return MapError(err, store.ErrTemplateNotFound)
	}
	return CheckRowsAffected(result, store.ErrTemplateNotFound)
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var t domain.Template
	if err := row.Scan(&t.ID, &t.Name, &t.Content, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTemplateNotFound
		}
		return nil, MapError(err, store.ErrTemplateNotFound)
	}
	return &t, nil
}
