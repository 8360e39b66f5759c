package origin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ReviewRelay/internal/config"
	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/source"
)

const anonymousAuthor = "Anonymous"

// GBPClient lists reviews through the Google Business Profile API. The API
// returns the full review list for a location on every call; delta
// filtering happens downstream against the ingestion cursor.
type GBPClient struct {
	baseURL   string
	accountID string
	token     string
	client    *http.Client
}

var _ source.Strategy = (*GBPClient)(nil)

// NewGBPClient builds a client from configuration.
func NewGBPClient(cfg config.OriginConfig, client *http.Client) *GBPClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &GBPClient{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		accountID: cfg.AccountID,
		token:     cfg.APIToken,
		client:    client,
	}
}

// Name identifies the strategy inside the registry.
func (c *GBPClient) Name() string {
	return "gbp"
}

// Fetch lists all reviews for the location.
func (c *GBPClient) Fetch(ctx context.Context, loc domain.Location) ([]domain.Review, error) {
	if c.baseURL == "" || c.accountID == "" {
		return nil, fmt.Errorf("gbp client misconfigured")
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews",
		c.baseURL, c.accountID, loc.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gbp error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		Reviews []struct {
			Name     string `json:"name"`
			Reviewer struct {
				DisplayName string `json:"displayName"`
			} `json:"reviewer"`
			StarRating struct {
				Rating int `json:"rating"`
			} `json:"starRating"`
			Comment    string    `json:"comment"`
			CreateTime time.Time `json:"createTime"`
		} `json:"reviews"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}

	reviews := make([]domain.Review, 0, len(payload.Reviews))
	for _, raw := range payload.Reviews {
		author := strings.TrimSpace(raw.Reviewer.DisplayName)
		if author == "" {
			author = anonymousAuthor
		}
		reviews = append(reviews, domain.Review{
			ID:         reviewIDFromPath(raw.Name),
			LocationID: loc.ID,
			Author:     author,
			Rating:     raw.StarRating.Rating,
			Comment:    raw.Comment,
			CreatedAt:  raw.CreateTime,
		})
	}
	return reviews, nil
}

// reviewIDFromPath extracts the stable identifier from the origin review
// path (accounts/a/locations/l/reviews/<id>).
func reviewIDFromPath(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
