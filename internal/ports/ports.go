package ports

import (
	"context"
	"time"

	"ReviewRelay/internal/domain"
)

// ReviewRepository persists reviews, drafts, locations, cursors, and
// pending edit contexts. All reads return domain.ErrNotFound when the
// entity is absent.
type ReviewRepository interface {
	// CreateReview inserts a review; returns domain.ErrAlreadyExists when
	// the ID is already present.
	CreateReview(ctx context.Context, review domain.Review) error
	GetReview(ctx context.Context, id string) (domain.Review, error)
	// UpdateStatus applies a lifecycle transition, setting DraftID when one
	// is supplied. Returns domain.ErrInvalidTransition for edges outside
	// the state machine.
	UpdateStatus(ctx context.Context, reviewID string, status domain.Status, draftID string) error

	// CreateDraft stores a new draft under a fresh identifier and returns it.
	CreateDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error)
	GetDraft(ctx context.Context, id string) (domain.Draft, error)

	GetLocation(ctx context.Context, id string) (domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)

	GetCursor(ctx context.Context, locationID string) (domain.Cursor, error)
	SaveCursor(ctx context.Context, cursor domain.Cursor) error

	SetPendingEdit(ctx context.Context, edit domain.PendingEdit) error
	// GetPendingEdit returns domain.ErrNotFound for absent or expired
	// records.
	GetPendingEdit(ctx context.Context, operatorID string) (domain.PendingEdit, error)
	ClearPendingEdit(ctx context.Context, operatorID string) error
}

// ReviewSource pulls the current full review list for one location from its
// origin platform. The origin offers no delta query; the ingestion cursor
// bounds the work downstream.
type ReviewSource interface {
	FetchForLocation(ctx context.Context, loc domain.Location) ([]domain.Review, error)
}

// GenerationRequest is the two-part prompt sent to the generation
// collaborator.
type GenerationRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// GenerationResult carries the reply text and the reported usage cost.
type GenerationResult struct {
	Text      string
	TokenCost int
}

// ReplyGenerator produces reply text from a prompt pair.
type ReplyGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// ReviewPrompt is the interactive approval message pushed to an operator
// channel: review header and body, the AI draft, and the three action
// buttons carrying the review ID as correlation data.
type ReviewPrompt struct {
	ReviewID  string
	Rating    int
	Author    string
	Comment   string
	DraftText string
}

// Messenger delivers outbound chat messages. Push failures never mutate
// review state; the caller decides whether to retry.
type Messenger interface {
	PushPrompt(ctx context.Context, channelID string, prompt ReviewPrompt) error
	Reply(ctx context.Context, replyToken, text string) error
}

// EventHandler consumes one event. A non-nil error requests redelivery.
type EventHandler func(ctx context.Context, event any) error

// EventBus connects the pipeline stages with at-least-once delivery;
// consumers must tolerate duplicates.
type EventBus interface {
	Publish(ctx context.Context, topic string, event any) error
	Subscribe(topic string, handler EventHandler)
}

// Scheduler controls when recurring sweeps execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
