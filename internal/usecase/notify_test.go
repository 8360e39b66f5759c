package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/infrastructure/storage"
)

func newNotifyFixture(t *testing.T, messenger *fakeMessenger) (*Notifier, *storage.MemoryRepository, domain.ReviewDrafted) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	notifier := NewNotifier(NotifierDeps{
		Repo:      repo,
		Messenger: messenger,
		Logger:    discardLogger(),
	})

	ctx := context.Background()
	require.NoError(t, repo.CreateReview(ctx, domain.Review{
		ID: "r1", LocationID: "loc-1", Author: "Alice", Rating: 4,
		Comment: "Nice place", Status: domain.StatusNew,
	}))
	draft, err := repo.CreateDraft(ctx, domain.Draft{ReviewID: "r1", Text: "Thank you!"})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, "r1", domain.StatusDrafted, draft.ID))

	return notifier, repo, domain.ReviewDrafted{ReviewID: "r1", DraftID: draft.ID}
}

func TestNotifyPushesPrompt(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{}
	notifier, repo, event := newNotifyFixture(t, messenger)
	repo.PutLocation(domain.Location{ID: "loc-1", ChannelID: "U-operator"})

	require.NoError(t, notifier.HandleReviewDrafted(context.Background(), event))

	require.Len(t, messenger.prompts, 1)
	pushed := messenger.prompts[0]
	assert.Equal(t, "U-operator", pushed.channelID)
	assert.Equal(t, "r1", pushed.prompt.ReviewID)
	assert.Equal(t, 4, pushed.prompt.Rating)
	assert.Equal(t, "Alice", pushed.prompt.Author)
	assert.Equal(t, "Thank you!", pushed.prompt.DraftText)
}

func TestNotifyMissingChannelIsNotRetried(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{}
	notifier, repo, event := newNotifyFixture(t, messenger)
	repo.PutLocation(domain.Location{ID: "loc-1"}) // no channel configured

	// Config errors ack the event; redelivery cannot fix them.
	require.NoError(t, notifier.HandleReviewDrafted(context.Background(), event))
	assert.Empty(t, messenger.prompts)

	review, err := repo.GetReview(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDrafted, review.Status)
}

func TestNotifyPushFailureIsRetriable(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{pushErr: errors.New("push channel down")}
	notifier, repo, event := newNotifyFixture(t, messenger)
	repo.PutLocation(domain.Location{ID: "loc-1", ChannelID: "U-operator"})

	err := notifier.HandleReviewDrafted(context.Background(), event)
	require.Error(t, err)

	// Delivery failure never mutates review state.
	review, getErr := repo.GetReview(context.Background(), "r1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusDrafted, review.Status)
}

func TestNotifyMissingReviewIsAcked(t *testing.T) {
	t.Parallel()

	messenger := &fakeMessenger{}
	notifier, _, _ := newNotifyFixture(t, messenger)

	event := domain.ReviewDrafted{ReviewID: "ghost", DraftID: "d0"}
	require.NoError(t, notifier.HandleReviewDrafted(context.Background(), event))
	assert.Empty(t, messenger.prompts)
}
