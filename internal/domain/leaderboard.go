package domain

import (
	"time"
)

// LedgerEntry is a member's accrued XP.
type LedgerEntry struct {
	MemberID   string    `json:"member_id"`
	XP         int64     `json:"xp"`
	OrderCount int64     `json:"order_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LeaderboardRow is a ranked ledger entry as returned by the public query.
type LeaderboardRow struct {
	Rank       int64  `json:"rank"`
	MemberID   string `json:"member_id"`
	XP         int64  `json:"xp"`
	OrderCount int64  `json:"order_count"`
}

// RankedLine is a leaderboard row with its resolved display name.
type RankedLine struct {
	LeaderboardRow
	DisplayName string
}

// RowsFromEntries ranks entries in the order given, starting at 1.
func RowsFromEntries(entries []LedgerEntry) []LeaderboardRow {
	rows := make([]LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = LeaderboardRow{
			Rank:       int64(i + 1),
			MemberID:   e.MemberID,
			XP:         e.XP,
			OrderCount: e.OrderCount,
		}
	}
	return rows
}

// Less orders ledger entries for ranking: xp descending, then the member who
// reached the total first, then member id.
func Less(a, b LedgerEntry) bool {
	if a.XP != b.XP {
		return a.XP > b.XP
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.MemberID < b.MemberID
}
