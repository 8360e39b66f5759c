package origin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/source"
)

// ListingScraper extracts reviews from public HTML listing pages, for
// platforms that expose no API. Pages are crawled in order until a short
// page marks the end of the listing.
type ListingScraper struct {
	client   *http.Client
	pageSize int
}

var _ source.Strategy = (*ListingScraper)(nil)

// NewListingScraper wires an HTTP client; pageSize defaults to 50.
func NewListingScraper(client *http.Client) *ListingScraper {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ListingScraper{client: client, pageSize: 50}
}

// Name identifies the strategy inside the registry.
func (l *ListingScraper) Name() string {
	return "listing"
}

// Fetch walks the location's listing pages and returns every parsable
// review entry.
func (l *ListingScraper) Fetch(ctx context.Context, loc domain.Location) ([]domain.Review, error) {
	if loc.PageURL == "" {
		return nil, fmt.Errorf("location %s has no listing page url", loc.ID)
	}

	var results []domain.Review
	seen := map[string]struct{}{}

	for page := 0; ; page++ {
		pageURL, err := buildPageURL(loc.PageURL, page, l.pageSize)
		if err != nil {
			return nil, err
		}

		doc, err := l.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		entries := doc.Find("div.review")
		entries.Each(func(_ int, sel *goquery.Selection) {
			review, err := parseEntry(sel, loc.ID)
			if err != nil {
				return
			}
			if _, ok := seen[review.ID]; ok {
				return
			}
			seen[review.ID] = struct{}{}
			results = append(results, review)
		})

		if entries.Length() < l.pageSize {
			break
		}
	}

	return results, nil
}

func (l *ListingScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ReviewRelay/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	return doc, nil
}

func parseEntry(sel *goquery.Selection, locationID string) (domain.Review, error) {
	id := strings.TrimSpace(sel.AttrOr("data-review-id", ""))
	if id == "" {
		if href, exists := sel.Find("a[href*=\"/reviews/\"]").First().Attr("href"); exists {
			id = href[strings.LastIndex(href, "/")+1:]
		}
	}
	if id == "" {
		return domain.Review{}, fmt.Errorf("review entry without identifier")
	}

	author := strings.TrimSpace(sel.Find(".author").First().Text())
	if author == "" {
		author = anonymousAuthor
	}

	rating := parseRating(sel.Find(".rating").First())
	comment := strings.TrimSpace(sel.Find(".comment").First().Text())

	created := time.Now().UTC()
	if raw, exists := sel.Find("time").First().Attr("datetime"); exists {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			created = parsed
		}
	}

	return domain.Review{
		ID:         id,
		LocationID: locationID,
		Author:     author,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  created,
	}, nil
}

func parseRating(sel *goquery.Selection) int {
	if raw, exists := sel.Attr("data-rating"); exists {
		if rating, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return rating
		}
	}
	// Fall back to counting filled stars in the rendered text.
	return strings.Count(sel.Text(), "★")
}

func buildPageURL(base string, page, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
