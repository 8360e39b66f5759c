package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

// NotifierDeps wires the collaborators of the notification stage.
type NotifierDeps struct {
	Repo      ports.ReviewRepository
	Messenger ports.Messenger
	Logger    *slog.Logger
}

// Notifier consumes drafted-review events and pushes the interactive
// approval prompt to the location's operator channel.
type Notifier struct {
	repo      ports.ReviewRepository
	messenger ports.Messenger
	logger    *slog.Logger
}

// NewNotifier constructs the notification stage.
func NewNotifier(deps NotifierDeps) *Notifier {
	return &Notifier{
		repo:      deps.Repo,
		messenger: deps.Messenger,
		logger:    deps.Logger,
	}
}

// HandleReviewDrafted pushes the approval prompt for one draft. A missing
// operator channel is a configuration error: logged, acked, never retried,
// since redelivery cannot create the channel. A push failure is returned so
// the bus redelivers; the review stays drafted and a duplicate chat message
// is the worst outcome.
func (n *Notifier) HandleReviewDrafted(ctx context.Context, event any) error {
	drafted, ok := event.(domain.ReviewDrafted)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	review, err := n.repo.GetReview(ctx, drafted.ReviewID)
	if errors.Is(err, domain.ErrNotFound) {
		n.logger.Warn("review vanished before notification", "review", drafted.ReviewID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load review %s: %w", drafted.ReviewID, err)
	}

	draft, err := n.repo.GetDraft(ctx, drafted.DraftID)
	if errors.Is(err, domain.ErrNotFound) {
		n.logger.Warn("draft vanished before notification",
			"review", drafted.ReviewID, "draft", drafted.DraftID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load draft %s: %w", drafted.DraftID, err)
	}

	loc, err := n.repo.GetLocation(ctx, review.LocationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load location %s: %w", review.LocationID, err)
	}
	if errors.Is(err, domain.ErrNotFound) || loc.ChannelID == "" {
		n.logger.Error("no operator channel, review stays drafted pending setup",
			"review", review.ID, "location", review.LocationID,
			"error", domain.ErrConfigurationMissing)
		return nil
	}

	prompt := ports.ReviewPrompt{
		ReviewID:  review.ID,
		Rating:    review.Rating,
		Author:    review.Author,
		Comment:   review.Comment,
		DraftText: draft.Text,
	}
	if err := n.messenger.PushPrompt(ctx, loc.ChannelID, prompt); err != nil {
		return fmt.Errorf("push prompt for %s: %w", review.ID, err)
	}

	n.logger.Info("approval prompt sent",
		"review", review.ID, "draft", draft.ID, "channel", loc.ChannelID)
	return nil
}
