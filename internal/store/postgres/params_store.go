package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhouse/duelengine/internal/domain"
)

// ParamsStore implements domain.ParamsStore using a single JSONB row, so
// admin-tuned engine parameters survive restarts.
type ParamsStore struct {
	pool *pgxpool.Pool
}

// NewParamsStore creates a new ParamsStore backed by the given connection pool.
func NewParamsStore(pool *pgxpool.Pool) *ParamsStore {
	return &ParamsStore{pool: pool}
}

// Load returns the persisted engine parameters, or domain.ErrNotFound when
// none have been saved yet.
func (s *ParamsStore) Load(ctx context.Context) (domain.EngineParams, error) {
	var paramsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT params FROM engine_params WHERE singleton`,
	).Scan(&paramsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EngineParams{}, domain.ErrNotFound
		}
		return domain.EngineParams{}, fmt.Errorf("postgres: load params: %w", err)
	}

	var p domain.EngineParams
	if err := json.Unmarshal(paramsJSON, &p); err != nil {
		return domain.EngineParams{}, fmt.Errorf("postgres: unmarshal params: %w", err)
	}
	return p, nil
}

// Save upserts the engine parameters.
func (s *ParamsStore) Save(ctx context.Context, p domain.EngineParams) error {
	paramsJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("postgres: marshal params: %w", err)
	}

	const query = `
		INSERT INTO engine_params (singleton, params, updated_at)
		VALUES (TRUE, $1, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			params     = EXCLUDED.params,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, paramsJSON); err != nil {
		return fmt.Errorf("postgres: save params: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ParamsStore = (*ParamsStore)(nil)
