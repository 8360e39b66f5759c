package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves canned review lists per location.
type fakeSource struct {
	reviews map[string][]domain.Review
	errs    map[string]error
}

func (f *fakeSource) FetchForLocation(_ context.Context, loc domain.Location) ([]domain.Review, error) {
	if err := f.errs[loc.ID]; err != nil {
		return nil, err
	}
	return f.reviews[loc.ID], nil
}

type publishedEvent struct {
	topic string
	event any
}

// recordingBus captures published events instead of delivering them.
type recordingBus struct {
	mu         sync.Mutex
	events     []publishedEvent
	publishErr error
}

func (b *recordingBus) Publish(_ context.Context, topic string, event any) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{topic: topic, event: event})
	return nil
}

func (b *recordingBus) Subscribe(string, ports.EventHandler) {}

func (b *recordingBus) published() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedEvent(nil), b.events...)
}

// fakeGenerator returns a canned completion and records prompts.
type fakeGenerator struct {
	result   ports.GenerationResult
	err      error
	requests []ports.GenerationRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req ports.GenerationRequest) (ports.GenerationResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return ports.GenerationResult{}, g.err
	}
	return g.result, nil
}

type pushedPrompt struct {
	channelID string
	prompt    ports.ReviewPrompt
}

type sentReply struct {
	token string
	text  string
}

// fakeMessenger records outbound chat traffic.
type fakeMessenger struct {
	prompts  []pushedPrompt
	replies  []sentReply
	pushErr  error
	replyErr error
}

func (m *fakeMessenger) PushPrompt(_ context.Context, channelID string, prompt ports.ReviewPrompt) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.prompts = append(m.prompts, pushedPrompt{channelID: channelID, prompt: prompt})
	return nil
}

func (m *fakeMessenger) Reply(_ context.Context, token, text string) error {
	if m.replyErr != nil {
		return m.replyErr
	}
	m.replies = append(m.replies, sentReply{token: token, text: text})
	return nil
}
