package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// PostgresParameterStore implements store.ParameterStore.
type PostgresParameterStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.ParameterStore = (*PostgresParameterStore)(nil)

// NewPostgresParameterStore creates a parameter store over db.
// If logger is nil, a default logger will be used.
func NewPostgresParameterStore(db store.DBTX, logger *slog.Logger) *PostgresParameterStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresParameterStore{
		db:     db,
		logger: logger.With(slog.String("component", "parameter_store")),
	}
}

// WithTx returns a store that runs its queries on tx.
func (s *PostgresParameterStore) WithTx(tx *sql.Tx) *PostgresParameterStore {
	return &PostgresParameterStore{db: tx, logger: s.logger}
}

const parameterColumns = `id, name, "values", created_at, updated_at`

// Create implements store.ParameterStore.
func (s *PostgresParameterStore) Create(ctx context.Context, p *domain.Parameter) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := p.Validate(); err != nil {
		return err
	}

	values, err := json.Marshal(p.Values)
	if err != nil {
		return fmt.Errorf("failed to encode parameter values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO parameters (id, name, "values", created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Name, string(values), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrParameterNameExists
		}
		log.Error("failed to create parameter",
			slog.String("parameter_id", p.ID.String()),
			slog.Any("error", err))
		return MapError(err, store.ErrParameterNotFound)
	}

	log.Debug("parameter created", slog.String("parameter_id", p.ID.String()), slog.String("name", p.Name))
	return nil
}

// GetByID implements store.ParameterStore.
func (s *PostgresParameterStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Parameter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+parameterColumns+` FROM parameters WHERE id = $1`, id)
	return scanParameter(row)
}

// GetByName implements store.ParameterStore.
func (s *PostgresParameterStore) GetByName(ctx context.Context, name string) (*domain.Parameter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+parameterColumns+` FROM parameters WHERE name = $1`, name)
	return scanParameter(row)
}

// List implements store.ParameterStore.
func (s *PostgresParameterStore) List(ctx context.Context) ([]*domain.Parameter, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `SELECT `+parameterColumns+` FROM parameters ORDER BY name`)
	if err != nil {
		log.Error("failed to list parameters", slog.Any("error", err))
		return nil, MapError(err, nil)
	}
	defer func() { _ = rows.Close() }()

	params := make([]*domain.Parameter, 0)
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameter rows: %w", err)
	}
	return params, nil
}

// Update implements store.ParameterStore.
func (s *PostgresParameterStore) Update(ctx context.Context, p *domain.Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}

	values, err := json.Marshal(p.Values)
	if err != nil {
		return fmt.Errorf("failed to encode parameter values: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE parameters SET name = $2, "values" = $3, updated_at = $4
		WHERE id = $1
	`, p.ID, p.Name, string(values), p.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrParameterNameExists
		}
		return MapError(err, store.ErrParameterNotFound)
	}
	return CheckRowsAffected(result, store.ErrParameterNotFound)
}

// Delete implements store.ParameterStore.
func (s *PostgresParameterStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM parameters WHERE id = $1`, id)
	if err != nil {
		return MapError(err, store.ErrParameterNotFound)
	}
	return CheckRowsAffected(result, store.ErrParameterNotFound)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParameter(row rowScanner) (*domain.Parameter, error) {
	var p domain.Parameter
	var values []byte
	if err := row.Scan(&p.ID, &p.Name, &values, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrParameterNotFound
		}
		return nil, MapError(err, store.ErrParameterNotFound)
	}
	if err := json.Unmarshal(values, &p.Values); err != nil {
		return nil, fmt.Errorf("failed to decode parameter values: %w", err)
	}
	if p.Values == nil {
		p.Values = []string{}
	}
	return &p, nil
}
