package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creator-xp/internal/config"
	"github.com/creator-xp/internal/domain"
)

// Repository provides PostgreSQL-backed identity mappings and XP ledger.
// All ledger writes are single-statement upserts so concurrent awards for
// the same member serialize on the row lock.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return NewRepositoryFromPool(pool, logger), nil
}

// NewRepositoryFromPool wraps an existing pool.
func NewRepositoryFromPool(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger,
	}
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// UpsertMapping inserts or overwrites the mapping for m.Email. An empty
// display name keeps the previously known one only while the member is
// unchanged.
func (r *Repository) UpsertMapping(ctx context.Context, m domain.CreatorMapping) (*domain.CreatorMapping, error) {
	if m.Email == "" || m.MemberID == "" {
		return nil, domain.ErrInvalidRequest
	}

	query := `
		INSERT INTO creator_mappings (email, member_id, display_name, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $4)
		ON CONFLICT (email)
		DO UPDATE SET
			member_id = EXCLUDED.member_id,
			display_name = CASE
				WHEN creator_mappings.member_id = EXCLUDED.member_id
					THEN COALESCE(EXCLUDED.display_name, creator_mappings.display_name)
				ELSE EXCLUDED.display_name
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING email, member_id, COALESCE(display_name, ''), created_at, updated_at
	`
	var out domain.CreatorMapping
	err := r.pool.QueryRow(ctx, query, m.Email, m.MemberID, m.DisplayName, m.UpdatedAt).Scan(
		&out.Email,
		&out.MemberID,
		&out.DisplayName,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting mapping: %w", err)
	}
	return &out, nil
}

// GetMapping retrieves the mapping for a normalized email
func (r *Repository) GetMapping(ctx context.Context, email string) (*domain.CreatorMapping, error) {
	query := `
		SELECT email, member_id, COALESCE(display_name, ''), created_at, updated_at
		FROM creator_mappings
		WHERE email = $1
	`
	var m domain.CreatorMapping
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&m.Email,
		&m.MemberID,
		&m.DisplayName,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMappingNotFound
		}
		return nil, fmt.Errorf("getting mapping: %w", err)
	}
	return &m, nil
}

// AwardXP adds xp and one order to memberID's entry, creating it if needed
func (r *Repository) AwardXP(ctx context.Context, memberID string, xp int64, at time.Time) (*domain.LedgerEntry, error) {
	if memberID == "" || xp < 0 {
		return nil, domain.ErrInvalidRequest
	}

	query := `
		INSERT INTO xp_ledger (member_id, xp, order_count, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (member_id)
		DO UPDATE SET
			xp = xp_ledger.xp + EXCLUDED.xp,
			order_count = xp_ledger.order_count + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING member_id, xp, order_count, updated_at
	`
	var e domain.LedgerEntry
	err := r.pool.QueryRow(ctx, query, memberID, xp, at).Scan(
		&e.MemberID,
		&e.XP,
		&e.OrderCount,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("awarding xp: %w", err)
	}
	return &e, nil
}

// GetEntry retrieves a member's ledger entry
func (r *Repository) GetEntry(ctx context.Context, memberID string) (*domain.LedgerEntry, error) {
	query := `
		SELECT member_id, xp, order_count, updated_at
		FROM xp_ledger
		WHERE member_id = $1
	`
	var e domain.LedgerEntry
	err := r.pool.QueryRow(ctx, query, memberID).Scan(&e.MemberID, &e.XP, &e.OrderCount, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("getting ledger entry: %w", err)
	}
	return &e, nil
}

// TopEntries retrieves up to limit ledger entries in ranking order
func (r *Repository) TopEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	query := `
		SELECT member_id, xp, order_count, updated_at
		FROM xp_ledger
		ORDER BY xp DESC, updated_at ASC, member_id ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.MemberID, &e.XP, &e.OrderCount, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}
