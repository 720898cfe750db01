package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/creator-xp/internal/domain"
	"github.com/creator-xp/internal/metrics"
)

// IdentityService binds purchaser emails to community members
type IdentityService struct {
	store  IdentityStore
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(store IdentityStore, clock clockwork.Clock, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// MapEmailToMember upserts the mapping for req.Email. Mapping the same email
// again replaces the member id; it never creates a second row.
func (s *IdentityService) MapEmailToMember(ctx context.Context, req domain.MapEmailRequest) (*domain.CreatorMapping, error) {
	email := domain.NormalizeEmail(req.Email)
	memberID := strings.TrimSpace(req.MemberID)
	if email == "" || memberID == "" {
		return nil, domain.ErrInvalidRequest
	}

	mapping, err := s.store.UpsertMapping(ctx, domain.CreatorMapping{
		Email:       email,
		MemberID:    memberID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		UpdatedAt:   s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("storing mapping: %w", err)
	}
	metrics.MappingsTotal.Inc()

	s.logger.Info("creator mapped", "member_id", mapping.MemberID)
	return mapping, nil
}
