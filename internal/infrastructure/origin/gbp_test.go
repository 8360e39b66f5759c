package origin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReviewRelay/internal/config"
	"ReviewRelay/internal/domain"
)

func TestGBPFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/locations/loc-1/reviews", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"reviews": [
				{
					"name": "accounts/acct-1/locations/loc-1/reviews/rev-42",
					"reviewer": {"displayName": "Alice"},
					"starRating": {"rating": 5},
					"comment": "Great coffee",
					"createTime": "2025-03-10T11:00:00Z"
				},
				{
					"name": "accounts/acct-1/locations/loc-1/reviews/rev-43",
					"reviewer": {"displayName": "  "},
					"starRating": {"rating": 2},
					"comment": "Slow service",
					"createTime": "2025-03-10T11:30:00Z"
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewGBPClient(config.OriginConfig{
		BaseURL:   server.URL,
		AccountID: "acct-1",
		APIToken:  "secret-token",
	}, server.Client())

	reviews, err := client.Fetch(context.Background(), domain.Location{ID: "loc-1"})
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	assert.Equal(t, "rev-42", reviews[0].ID)
	assert.Equal(t, "loc-1", reviews[0].LocationID)
	assert.Equal(t, "Alice", reviews[0].Author)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, "Great coffee", reviews[0].Comment)
	assert.Equal(t, time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC), reviews[0].CreatedAt)

	// A blank reviewer name is replaced, never left empty.
	assert.Equal(t, "rev-43", reviews[1].ID)
	assert.Equal(t, anonymousAuthor, reviews[1].Author)
}

func TestGBPFetchEmptyList(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewGBPClient(config.OriginConfig{
		BaseURL:   server.URL,
		AccountID: "acct-1",
	}, server.Client())

	reviews, err := client.Fetch(context.Background(), domain.Location{ID: "loc-1"})
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestGBPFetchAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "quota exhausted"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := NewGBPClient(config.OriginConfig{
		BaseURL:   server.URL,
		AccountID: "acct-1",
	}, server.Client())

	_, err := client.Fetch(context.Background(), domain.Location{ID: "loc-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestGBPFetchMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewGBPClient(config.OriginConfig{}, nil)
	_, err := client.Fetch(context.Background(), domain.Location{ID: "loc-1"})
	assert.Error(t, err)
}

func TestReviewIDFromPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rev-7", reviewIDFromPath("accounts/a/locations/l/reviews/rev-7"))
	assert.Equal(t, "bare-id", reviewIDFromPath("bare-id"))
}
