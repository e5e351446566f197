package model

import "time"

type LedgerEntryType string

const (
	LedgerReserve     LedgerEntryType = "reserve"
	LedgerRelease     LedgerEntryType = "release"
	LedgerRefund      LedgerEntryType = "refund"
	LedgerSpend       LedgerEntryType = "spend"
	LedgerPurchase    LedgerEntryType = "purchase"
	LedgerAdminAdjust LedgerEntryType = "admin_adjust"
)

// CreditLedgerEntry is an immutable, append-only record of one balance
// change. A user's balance is the sum of their amounts: reservations are
// negative, refunds and purchases positive.
type CreditLedgerEntry struct {
	ID        string
	UserID    string
	JobID     string // empty for purchases and admin adjustments
	Type      LedgerEntryType
	Amount    int // signed credits
	Note      string
	CreatedAt time.Time
}
