package domain

import "time"

// DefaultTone is applied when a location has no reply tone configured.
const DefaultTone = "polite"

// Status enumerates review lifecycle milestones.
type Status string

const (
	StatusNew     Status = "new"
	StatusDrafted Status = "drafted"
	StatusPosted  Status = "posted"
	StatusIgnored Status = "ignored"
)

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusIgnored
}

// CanTransition reports whether the lifecycle allows moving between the two
// statuses. The drafted→drafted self-loop covers manual corrections.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusNew:
		return to == StatusDrafted
	case StatusDrafted:
		return to == StatusDrafted || to == StatusPosted || to == StatusIgnored
	default:
		return false
	}
}

// Location is a configured business location: where to fetch reviews from
// and which operator channel receives approval prompts.
type Location struct {
	ID        string
	Tone      string
	ChannelID string
	Source    string
	PageURL   string
}

// Review is a single customer review pulled from the origin platform. ID is
// derived from the origin review path and is the idempotency key across
// re-ingestion.
type Review struct {
	ID         string
	LocationID string
	Author     string
	Rating     int
	Comment    string
	CreatedAt  time.Time
	Status     Status
	DraftID    string
}

// Draft is a candidate reply. Drafts are append-only: a correction creates
// a new draft, it never mutates an existing one. TokenCost is zero for
// manually authored drafts.
type Draft struct {
	ID        string
	ReviewID  string
	Text      string
	TokenCost int
	CreatedAt time.Time
}

// Cursor is the per-location ingestion watermark. Monotonically
// non-decreasing.
type Cursor struct {
	LocationID string
	Timestamp  time.Time
}

// PendingEdit records that an operator was prompted for replacement text
// for a specific review. Expired records are treated as absent.
type PendingEdit struct {
	OperatorID string
	ReviewID   string
	ExpiresAt  time.Time
}
