package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

// MemoryRepository is an in-process ports.ReviewRepository used by stage
// tests and local development. It enforces the same state machine as the
// Postgres implementation.
type MemoryRepository struct {
	mu        sync.Mutex
	reviews   map[string]domain.Review
	drafts    map[string]domain.Draft
	locations map[string]domain.Location
	cursors   map[string]domain.Cursor
	edits     map[string]domain.PendingEdit
	now       func() time.Time
}

var _ ports.ReviewRepository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		reviews:   map[string]domain.Review{},
		drafts:    map[string]domain.Draft{},
		locations: map[string]domain.Location{},
		cursors:   map[string]domain.Cursor{},
		edits:     map[string]domain.PendingEdit{},
		now:       time.Now,
	}
}

// SetClock overrides the time source, for expiry tests.
func (m *MemoryRepository) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// PutLocation seeds a location record.
func (m *MemoryRepository) PutLocation(loc domain.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.ID] = loc
}

// CreateReview inserts a review, guarding the idempotency key.
func (m *MemoryRepository) CreateReview(_ context.Context, review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[review.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.reviews[review.ID] = review
	return nil
}

// GetReview loads one review by ID.
func (m *MemoryRepository) GetReview(_ context.Context, id string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return review, nil
}

// UpdateStatus applies one lifecycle transition.
func (m *MemoryRepository) UpdateStatus(_ context.Context, reviewID string, status domain.Status, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[reviewID]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(review.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, review.Status, status)
	}
	review.Status = status
	if draftID != "" {
		review.DraftID = draftID
	}
	m.reviews[reviewID] = review
	return nil
}

// CreateDraft stores a new draft under a fresh uuid.
func (m *MemoryRepository) CreateDraft(_ context.Context, draft domain.Draft) (domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft.ID = uuid.NewString()
	draft.CreatedAt = m.now().UTC()
	m.drafts[draft.ID] = draft
	return draft, nil
}

// GetDraft loads one draft by ID.
func (m *MemoryRepository) GetDraft(_ context.Context, id string) (domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[id]
	if !ok {
		return domain.Draft{}, domain.ErrNotFound
	}
	return draft, nil
}

// GetLocation loads one location by ID.
func (m *MemoryRepository) GetLocation(_ context.Context, id string) (domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound
	}
	return loc, nil
}

// ListLocations returns all seeded locations.
func (m *MemoryRepository) ListLocations(_ context.Context) ([]domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locations := make([]domain.Location, 0, len(m.locations))
	for _, loc := range m.locations {
		locations = append(locations, loc)
	}
	return locations, nil
}

// GetCursor loads the watermark for one location.
func (m *MemoryRepository) GetCursor(_ context.Context, locationID string) (domain.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor, ok := m.cursors[locationID]
	if !ok {
		return domain.Cursor{}, domain.ErrNotFound
	}
	return cursor, nil
}

// SaveCursor upserts the watermark.
func (m *MemoryRepository) SaveCursor(_ context.Context, cursor domain.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[cursor.LocationID] = cursor
	return nil
}

// SetPendingEdit upserts the operator's edit context.
func (m *MemoryRepository) SetPendingEdit(_ context.Context, edit domain.PendingEdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[edit.OperatorID] = edit
	return nil
}

// GetPendingEdit returns the operator's unexpired edit context.
func (m *MemoryRepository) GetPendingEdit(_ context.Context, operatorID string) (domain.PendingEdit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	edit, ok := m.edits[operatorID]
	if !ok || !m.now().Before(edit.ExpiresAt) {
		return domain.PendingEdit{}, domain.ErrNotFound
	}
	return edit, nil
}

// ClearPendingEdit removes the operator's edit context if any.
func (m *MemoryRepository) ClearPendingEdit(_ context.Context, operatorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edits, operatorID)
	return nil
}
