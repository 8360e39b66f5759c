package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

const (
	maxReplyTokens   = 200
	replyTemperature = 0.7
)

// GeneratorDeps wires the collaborators of the generation stage.
type GeneratorDeps struct {
	Repo      ports.ReviewRepository
	Generator ports.ReplyGenerator
	Bus       ports.EventBus
	Logger    *slog.Logger
}

// Generator consumes review-created events, asks the generation
// collaborator for reply text, and moves the review to drafted.
type Generator struct {
	repo   ports.ReviewRepository
	gen    ports.ReplyGenerator
	bus    ports.EventBus
	logger *slog.Logger
}

// NewGenerator constructs the generation stage.
func NewGenerator(deps GeneratorDeps) *Generator {
	return &Generator{
		repo:   deps.Repo,
		gen:    deps.Generator,
		bus:    deps.Bus,
		logger: deps.Logger,
	}
}

// HandleReviewCreated drafts a reply for one review. A collaborator failure
// is returned so the bus redelivers; the review stays new and a retry is
// safe (repeated drafts are acceptable duplicates, the review's DraftID
// pointer names the current one).
func (g *Generator) HandleReviewCreated(ctx context.Context, event any) error {
	created, ok := event.(domain.ReviewCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	review := created.Review

	// Generation never blocks on missing configuration.
	tone := domain.DefaultTone
	loc, err := g.repo.GetLocation(ctx, review.LocationID)
	switch {
	case err == nil:
		if loc.Tone != "" {
			tone = loc.Tone
		}
	case errors.Is(err, domain.ErrNotFound):
		g.logger.Warn("location record missing, using default tone",
			"location", review.LocationID, "review", review.ID)
	default:
		return fmt.Errorf("load location %s: %w", review.LocationID, err)
	}

	result, err := g.gen.Generate(ctx, ports.GenerationRequest{
		System:      systemPrompt(tone),
		User:        userPrompt(review),
		MaxTokens:   maxReplyTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		return fmt.Errorf("generate reply for %s: %w", review.ID, err)
	}

	draft, err := g.repo.CreateDraft(ctx, domain.Draft{
		ReviewID:  review.ID,
		Text:      result.Text,
		TokenCost: result.TokenCost,
	})
	if err != nil {
		return fmt.Errorf("save draft for %s: %w", review.ID, err)
	}

	if err := g.repo.UpdateStatus(ctx, review.ID, domain.StatusDrafted, draft.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Redelivery after the review already reached a terminal state;
			// the extra draft stays as history.
			g.logger.Warn("review moved on before draft landed",
				"review", review.ID, "draft", draft.ID)
			return nil
		}
		return fmt.Errorf("mark review %s drafted: %w", review.ID, err)
	}

	event = domain.ReviewDrafted{ReviewID: review.ID, DraftID: draft.ID}
	if err := g.bus.Publish(ctx, domain.TopicReviewDrafted, event); err != nil {
		return fmt.Errorf("publish drafted event for %s: %w", review.ID, err)
	}

	g.logger.Info("reply drafted",
		"review", review.ID, "draft", draft.ID, "tokens", result.TokenCost)
	return nil
}

func systemPrompt(tone string) string {
	return fmt.Sprintf(
		"You reply to customer reviews on behalf of the business owner, as a courteous front-desk staff member.\nTone: %s",
		tone)
}

func userPrompt(r domain.Review) string {
	return fmt.Sprintf("[%d stars] %s: %s", r.Rating, r.Author, r.Comment)
}
