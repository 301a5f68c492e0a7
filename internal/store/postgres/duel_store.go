package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhouse/duelengine/internal/domain"
)

// DuelStore implements domain.DuelStore using PostgreSQL. Status transitions
// are single compare-and-swap UPDATEs so they stay monotonic across racing
// callers.
type DuelStore struct {
	pool *pgxpool.Pool
}

// NewDuelStore creates a new DuelStore backed by the given connection pool.
func NewDuelStore(pool *pgxpool.Pool) *DuelStore {
	return &DuelStore{pool: pool}
}

// InsertRequest persists a new pending creation request.
func (s *DuelStore) InsertRequest(ctx context.Context, req domain.CreateRequest) error {
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return fmt.Errorf("postgres: marshal request params: %w", err)
	}

	const query = `
		INSERT INTO create_requests (id, requester, params, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = s.pool.Exec(ctx, query,
		req.ID, string(req.Requester), paramsJSON, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert request %s: %w", req.ID, err)
	}
	return nil
}

// GetRequest retrieves a creation request by its ID.
func (s *DuelStore) GetRequest(ctx context.Context, id uuid.UUID) (domain.CreateRequest, error) {
	const query = `
		SELECT id, requester, params, status, created_at
		FROM create_requests WHERE id = $1`

	var (
		req        domain.CreateRequest
		requester  string
		paramsJSON []byte
		status     string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &requester, &paramsJSON, &status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CreateRequest{}, domain.ErrNotFound
		}
		return domain.CreateRequest{}, fmt.Errorf("postgres: get request %s: %w", id, err)
	}

	if err := json.Unmarshal(paramsJSON, &req.Params); err != nil {
		return domain.CreateRequest{}, fmt.Errorf("postgres: unmarshal request params %s: %w", id, err)
	}
	req.Requester = domain.Account(requester)
	req.Status = domain.RequestStatus(status)
	return req, nil
}

// SetRequestStatus transitions a request from `from` to `to`. It returns
// domain.ErrInvalidStatus when the request is no longer in `from`.
func (s *DuelStore) SetRequestStatus(ctx context.Context, id uuid.UUID, from, to domain.RequestStatus) error {
	const query = `UPDATE create_requests SET status = $3 WHERE id = $1 AND status = $2`
	tag, err := s.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("postgres: set request %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRequest(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidStatus
	}
	return nil
}

// ListRequests returns requests with the given status, newest first.
func (s *DuelStore) ListRequests(ctx context.Context, status domain.RequestStatus, opts domain.ListOpts) ([]domain.CreateRequest, error) {
	query := `
		SELECT id, requester, params, status, created_at
		FROM create_requests WHERE status = $1
		ORDER BY created_at DESC`
	args := []any{string(status)}
	query, args = paginate(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list requests: %w", err)
	}
	defer rows.Close()

	var out []domain.CreateRequest
	for rows.Next() {
		var (
			req        domain.CreateRequest
			requester  string
			paramsJSON []byte
			st         string
		)
		if err := rows.Scan(&req.ID, &requester, &paramsJSON, &st, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan request: %w", err)
		}
		if err := json.Unmarshal(paramsJSON, &req.Params); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal request params: %w", err)
		}
		req.Requester = domain.Account(requester)
		req.Status = domain.RequestStatus(st)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list requests rows: %w", err)
	}
	return out, nil
}

const duelCols = `id, kind, creator, options, status, pools,
	min_wager_threshold, min_wager_per_trade, max_pool,
	created_at, bootstrap_ends_at, expires_at, resolving_deadline,
	trigger, start_price, end_price, winning_option,
	distributable_pot, winning_supply`

// Insert persists a newly approved duel.
func (s *DuelStore) Insert(ctx context.Context, d domain.Duel) error {
	var triggerJSON []byte
	if d.Trigger != nil {
		var err error
		triggerJSON, err = json.Marshal(d.Trigger)
		if err != nil {
			return fmt.Errorf("postgres: marshal trigger: %w", err)
		}
	}

	pools := make([]int64, len(d.Pools))
	for i, p := range d.Pools {
		pools[i] = int64(p)
	}

	const query = `
		INSERT INTO duels (` + duelCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := s.pool.Exec(ctx, query,
		d.ID, string(d.Kind), string(d.Creator), d.Options, string(d.Status), pools,
		int64(d.MinWagerThreshold), int64(d.MinWagerPerTrade), int64(d.MaxPool),
		d.CreatedAt, d.BootstrapEndsAt, d.ExpiresAt, d.ResolvingDeadline,
		triggerJSON, d.StartPrice, d.EndPrice, d.WinningOption,
		int64(d.DistributablePot), int64(d.WinningSupply),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert duel %s: %w", d.ID, err)
	}
	return nil
}

func scanDuel(row pgx.Row) (domain.Duel, error) {
	var (
		d           domain.Duel
		kind        string
		creator     string
		status      string
		pools       []int64
		threshold   int64
		perTrade    int64
		maxPool     int64
		triggerJSON []byte
		pot         int64
		supply      int64
	)
	err := row.Scan(
		&d.ID, &kind, &creator, &d.Options, &status, &pools,
		&threshold, &perTrade, &maxPool,
		&d.CreatedAt, &d.BootstrapEndsAt, &d.ExpiresAt, &d.ResolvingDeadline,
		&triggerJSON, &d.StartPrice, &d.EndPrice, &d.WinningOption,
		&pot, &supply,
	)
	if err != nil {
		return domain.Duel{}, err
	}

	d.Kind = domain.DuelKind(kind)
	d.Creator = domain.Account(creator)
	d.Status = domain.DuelStatus(status)
	d.Pools = make([]domain.Money, len(pools))
	for i, p := range pools {
		d.Pools[i] = domain.Money(p)
	}
	d.MinWagerThreshold = domain.Money(threshold)
	d.MinWagerPerTrade = domain.Money(perTrade)
	d.MaxPool = domain.Money(maxPool)
	d.DistributablePot = domain.Money(pot)
	d.WinningSupply = domain.Money(supply)

	if len(triggerJSON) > 0 {
		var trig domain.PriceTrigger
		if err := json.Unmarshal(triggerJSON, &trig); err != nil {
			return domain.Duel{}, fmt.Errorf("unmarshal trigger: %w", err)
		}
		d.Trigger = &trig
	}
	return d, nil
}

// Get retrieves a duel by its primary key.
func (s *DuelStore) Get(ctx context.Context, id uuid.UUID) (domain.Duel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+duelCols+` FROM duels WHERE id = $1`, id)
	d, err := scanDuel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Duel{}, domain.ErrNotFound
		}
		return domain.Duel{}, fmt.Errorf("postgres: get duel %s: %w", id, err)
	}
	return d, nil
}

// List returns duels newest first.
func (s *DuelStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Duel, error) {
	query := `SELECT ` + duelCols + ` FROM duels ORDER BY created_at DESC`
	var args []any
	query, args = paginate(query, args, opts)
	return s.queryDuels(ctx, query, args...)
}

// ListByStatus returns duels with the given status, newest first.
func (s *DuelStore) ListByStatus(ctx context.Context, status domain.DuelStatus, opts domain.ListOpts) ([]domain.Duel, error) {
	query := `SELECT ` + duelCols + ` FROM duels WHERE status = $1 ORDER BY created_at DESC`
	args := []any{string(status)}
	query, args = paginate(query, args, opts)
	return s.queryDuels(ctx, query, args...)
}

func (s *DuelStore) queryDuels(ctx context.Context, query string, args ...any) ([]domain.Duel, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list duels: %w", err)
	}
	defer rows.Close()

	var out []domain.Duel
	for rows.Next() {
		d, err := scanDuel(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan duel: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list duels rows: %w", err)
	}
	return out, nil
}

// MarkLive transitions Bootstrapped -> Live, recording the observed start
// price for price-trigger duels.
func (s *DuelStore) MarkLive(ctx context.Context, id uuid.UUID, startPrice *float64) error {
	const query = `
		UPDATE duels SET status = $2, start_price = $3
		WHERE id = $1 AND status = $4`
	tag, err := s.pool.Exec(ctx, query,
		id, string(domain.DuelStatusLive), startPrice, string(domain.DuelStatusBootstrapped),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark duel %s live: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

// MarkSettled transitions Live -> Settled and arms the distribution cursor in
// the same transaction. An empty winning side arms the cursor already done.
func (s *DuelStore) MarkSettled(ctx context.Context, id uuid.UUID, outcome domain.SettlementOutcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settle %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE duels SET status = $2, winning_option = $3, end_price = $4,
			distributable_pot = $5, winning_supply = $6
		WHERE id = $1 AND status = $7`
	tag, err := tx.Exec(ctx, update,
		id, string(domain.DuelStatusSettled),
		outcome.WinningOption, outcome.EndPrice,
		int64(outcome.DistributablePot), int64(outcome.WinningSupply),
		string(domain.DuelStatusLive),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark duel %s settled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}

	// No winner or an empty winning side leaves nothing to distribute.
	done := outcome.WinningOption == nil || outcome.WinningSupply == 0 || outcome.DistributablePot == 0
	const arm = `
		INSERT INTO payout_cursors (duel_id, kind, next, processed, done)
		VALUES ($1, $2, 0, 0, $3)`
	if _, err := tx.Exec(ctx, arm, id, string(domain.CursorDistribution), done); err != nil {
		return fmt.Errorf("postgres: arm distribution cursor %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settle %s: %w", id, err)
	}
	return nil
}

// MarkCancelled transitions a non-terminal status to Cancelled and arms the
// refund cursor in the same transaction.
func (s *DuelStore) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin cancel %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE duels SET status = $2
		WHERE id = $1 AND status NOT IN ($3, $4)`
	tag, err := tx.Exec(ctx, update,
		id, string(domain.DuelStatusCancelled),
		string(domain.DuelStatusSettled), string(domain.DuelStatusCancelled),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark duel %s cancelled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}

	const arm = `
		INSERT INTO payout_cursors (duel_id, kind, next, processed, done)
		VALUES ($1, $2, 0, 0, FALSE)`
	if _, err := tx.Exec(ctx, arm, id, string(domain.CursorRefund)); err != nil {
		return fmt.Errorf("postgres: arm refund cursor %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit cancel %s: %w", id, err)
	}
	return nil
}

// transitionConflict distinguishes a missing duel from one that is simply not
// in the expected predecessor status.
func (s *DuelStore) transitionConflict(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidStatus
}

// OpenLiquidity sums the pools of every non-terminal duel.
func (s *DuelStore) OpenLiquidity(ctx context.Context) (domain.Money, error) {
	const query = `
		SELECT COALESCE(SUM(p), 0)
		FROM duels d CROSS JOIN LATERAL unnest(d.pools) AS p
		WHERE d.status IN ($1, $2)`

	var total int64
	err := s.pool.QueryRow(ctx, query,
		string(domain.DuelStatusBootstrapped), string(domain.DuelStatusLive),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: open liquidity: %w", err)
	}
	return domain.Money(total), nil
}

// paginate appends LIMIT/OFFSET clauses for the given options.
func paginate(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// Compile-time interface check.
var _ domain.DuelStore = (*DuelStore)(nil)
