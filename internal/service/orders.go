package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/creator-xp/internal/domain"
	"github.com/creator-xp/internal/metrics"
	"github.com/creator-xp/internal/webhook"
)

// Outcome describes what a purchase event did to the ledger
type Outcome string

const (
	OutcomeAwarded   Outcome = "awarded"
	OutcomeNoEmail   Outcome = "no_email"
	OutcomeUnmapped  Outcome = "unmapped"
	OutcomeMalformed Outcome = "malformed"
)

// OrderResult is the result of handling one purchase event
type OrderResult struct {
	Outcome  Outcome
	OrderID  string
	MemberID string
	Entry    *domain.LedgerEntry
}

// OrderConfig configures the OrderService
type OrderConfig struct {
	WebhookSecret string
	XPPerOrder    int64
}

// OrderService turns authenticated purchase events into ledger awards
type OrderService struct {
	identity   IdentityStore
	ledger     Ledger
	secret     string
	xpPerOrder int64
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewOrderService creates a new order service
func NewOrderService(identity IdentityStore, ledger Ledger, cfg OrderConfig, clock clockwork.Clock, logger *slog.Logger) *OrderService {
	return &OrderService{
		identity:   identity,
		ledger:     ledger,
		secret:     cfg.WebhookSecret,
		xpPerOrder: cfg.XPPerOrder,
		clock:      clock,
		logger:     logger,
	}
}

// HandlePurchase authenticates raw against signature and applies the event.
// It returns domain.ErrUnauthorized without touching state when the
// signature does not match. Events without a purchaser email, without a
// mapping, or that cannot be parsed are accepted as no-ops.
func (s *OrderService) HandlePurchase(ctx context.Context, raw []byte, signature string) (*OrderResult, error) {
	if !webhook.Verify(raw, signature, s.secret) {
		return nil, domain.ErrUnauthorized
	}

	event, err := domain.ParsePurchaseEvent(raw)
	if err != nil {
		s.logger.Warn("ignoring unparseable purchase event", "error", err, "bytes", len(raw))
		return &OrderResult{Outcome: OutcomeMalformed}, nil
	}

	return s.ProcessPurchase(ctx, event)
}

// ProcessPurchase applies an already authenticated purchase event
func (s *OrderService) ProcessPurchase(ctx context.Context, event domain.PurchaseEvent) (*OrderResult, error) {
	result := &OrderResult{OrderID: string(event.OrderID)}

	email := event.PurchaserEmail()
	if email == "" {
		s.logger.Info("order has no purchaser email, ignoring", "order_id", result.OrderID)
		result.Outcome = OutcomeNoEmail
		return result, nil
	}

	mapping, err := s.identity.GetMapping(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrMappingNotFound) {
			s.logger.Info("purchaser not verified yet, ignoring order", "order_id", result.OrderID)
			result.Outcome = OutcomeUnmapped
			return result, nil
		}
		return nil, fmt.Errorf("looking up mapping: %w", err)
	}

	entry, err := s.ledger.AwardXP(ctx, mapping.MemberID, s.xpPerOrder, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("awarding xp: %w", err)
	}
	metrics.XPAwardedTotal.Add(float64(s.xpPerOrder))

	s.logger.Info("xp awarded",
		"order_id", result.OrderID,
		"member_id", entry.MemberID,
		"xp", entry.XP,
		"order_count", entry.OrderCount,
	)

	result.Outcome = OutcomeAwarded
	result.MemberID = entry.MemberID
	result.Entry = entry
	return result, nil
}
