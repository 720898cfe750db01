package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creator-xp/internal/domain"
)

func TestStore_UpsertMappingOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.UpsertMapping(ctx, domain.CreatorMapping{Email: "a@x.com", MemberID: "u1", DisplayName: "Ann", UpdatedAt: t0})
	require.NoError(t, err)
	got, err := s.UpsertMapping(ctx, domain.CreatorMapping{Email: "a@x.com", MemberID: "u2", UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	require.Equal(t, 1, s.MappingCount())
	require.Equal(t, "u2", got.MemberID)
	require.Empty(t, got.DisplayName)
	require.Equal(t, t0, got.CreatedAt)
	require.Equal(t, t0.Add(time.Hour), got.UpdatedAt)

	stored, err := s.GetMapping(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "u2", stored.MemberID)
}

func TestStore_UpsertMappingKeepsNameForSameMember(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.UpsertMapping(ctx, domain.CreatorMapping{Email: "a@x.com", MemberID: "u1", DisplayName: "Ann", UpdatedAt: t0})
	require.NoError(t, err)

	got, err := s.UpsertMapping(ctx, domain.CreatorMapping{Email: "a@x.com", MemberID: "u1", UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, "Ann", got.DisplayName)

	got, err = s.UpsertMapping(ctx, domain.CreatorMapping{Email: "a@x.com", MemberID: "u2", UpdatedAt: t0.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, "u2", got.MemberID)
	require.Empty(t, got.DisplayName)

	got, err = s.UpsertMapping(ctx, domain.CreatorMapping{Email: "a@x.com", MemberID: "u3", DisplayName: "Cid", UpdatedAt: t0.Add(3 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, "Cid", got.DisplayName)
}

func TestStore_GetMappingNotFound(t *testing.T) {
	t.Parallel()

	_, err := New().GetMapping(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, domain.ErrMappingNotFound)
}

func TestStore_AwardXPConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	const n = 200

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AwardXP(ctx, "u1", 10, time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	e, err := s.GetEntry(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(n), e.OrderCount)
	require.Equal(t, int64(n*10), e.XP)
}

func TestStore_AwardXPRejectsInvalid(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.AwardXP(context.Background(), "", 10, time.Now())
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = s.AwardXP(context.Background(), "u1", -1, time.Now())
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestStore_TopEntriesOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// u3 and u2 tie on 20 xp; u3 got there first.
	_, _ = s.AwardXP(ctx, "u1", 10, base)
	_, _ = s.AwardXP(ctx, "u3", 20, base.Add(1*time.Minute))
	_, _ = s.AwardXP(ctx, "u2", 20, base.Add(2*time.Minute))
	_, _ = s.AwardXP(ctx, "u4", 30, base.Add(3*time.Minute))

	entries, err := s.TopEntries(ctx, 10)
	require.NoError(t, err)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.MemberID
	}
	require.Equal(t, []string{"u4", "u3", "u2", "u1"}, ids)

	entries, err = s.TopEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestStore_TopEntriesLarge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	for i := 0; i < 150; i++ {
		_, err := s.AwardXP(ctx, fmt.Sprintf("m%03d", i), int64(i), time.Now())
		require.NoError(t, err)
	}

	entries, err := s.TopEntries(ctx, 100)
	require.NoError(t, err)
	require.Len(t, entries, 100)
	for i := 1; i < len(entries); i++ {
		require.GreaterOrEqual(t, entries[i-1].XP, entries[i].XP)
	}
}
