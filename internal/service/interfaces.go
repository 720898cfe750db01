package service

import (
	"context"
	"time"

	"github.com/creator-xp/internal/domain"
)

// IdentityStore persists email to member mappings
type IdentityStore interface {
	UpsertMapping(ctx context.Context, m domain.CreatorMapping) (*domain.CreatorMapping, error)
	GetMapping(ctx context.Context, email string) (*domain.CreatorMapping, error)
}

// Ledger persists per-member XP counters. AwardXP must apply the increment
// atomically in the storage engine.
type Ledger interface {
	AwardXP(ctx context.Context, memberID string, xp int64, at time.Time) (*domain.LedgerEntry, error)
	GetEntry(ctx context.Context, memberID string) (*domain.LedgerEntry, error)
	TopEntries(ctx context.Context, limit int) ([]domain.LedgerEntry, error)
}

// Store is the full storage surface used by the process
type Store interface {
	IdentityStore
	Ledger
	Ping(ctx context.Context) error
	Close()
}

// Gateway is the community platform capability. Every call may fail and
// none is retried by callers.
type Gateway interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	PinMessage(ctx context.Context, channelID, messageID string) error
	Member(ctx context.Context, memberID string) (*domain.Member, error)
	Channel(ctx context.Context, channelID string) (*domain.Channel, error)
	Permissions(ctx context.Context, channelID string) (domain.ChannelPermissions, error)
}

// NameCache caches resolved display names
type NameCache interface {
	DisplayName(ctx context.Context, memberID string) (string, error)
	SetDisplayName(ctx context.Context, memberID, name string) error
}
