package marketplace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"

	"github.com/wha7/wha7/pkg/category"
	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/types"
)

const (
	DefaultEndpoint    = "https://api.ebay.com/buy/browse/v1/item_summary/search_by_image"
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = time.Second
	DefaultLimit       = 3
	DefaultMaxInFlight = 8
)

// Options configures a Client. Zero values select the defaults above.
type Options struct {
	Endpoint      string
	AffiliateID   string
	MarketplaceID string
	MaxAttempts   int
	BaseBackoff   time.Duration
	Limit         int
	MaxInFlight   int64
	HTTPClient    *http.Client
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client searches the marketplace by image, scoped to the resolved category.
type Client struct {
	opts     Options
	tokens   oauth2.TokenSource
	resolver *category.Resolver
	inflight *semaphore.Weighted
	logger   *zap.Logger
}

type searchRequest struct {
	Image string `json:"image"`
}

type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	Categories []struct {
		CategoryID string `json:"categoryId"`
	} `json:"categories"`
}

// New creates a marketplace client.
func New(opts Options, tokens oauth2.TokenSource, resolver *category.Resolver, logger *zap.Logger) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("marketplace: token source is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("marketplace: category resolver is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("marketplace: invalid endpoint: %w", err)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		opts:     opts,
		tokens:   tokens,
		resolver: resolver,
		inflight: semaphore.NewWeighted(opts.MaxInFlight),
		logger:   logger,
	}, nil
}

// Search resolves the candidate's category and fills CategoryID and TopLinks.
// Failures leave TopLinks empty; they never abort the caller.
func (c *Client) Search(ctx context.Context, cand *types.Candidate, gender types.Gender) {
	id, mapped := c.resolver.Lookup(gender, cand.SearchTerm())
	cand.CategoryID = id
	cand.TopLinks = []string{}

	log := c.logger.With(
		zap.String("query", cand.Query()),
		zap.String("category", cand.CategoryID),
	)
	if !mapped {
		log.Debug("no category mapping, using default", zap.String("gender", string(gender)))
	}

	items, err := c.searchWithRetry(ctx, cand)
	if err != nil {
		if errors.Is(err, ErrTransient) {
			log.Warn("marketplace search gave up", zap.Error(err))
		} else {
			log.Error("marketplace search failed", zap.Error(err))
		}
		return
	}

	cand.TopLinks = c.links(items, cand.CategoryID)
	log.Debug("marketplace search done",
		zap.Int("items", len(items)),
		zap.Int("links", len(cand.TopLinks)),
	)
}

func (c *Client) searchWithRetry(ctx context.Context, cand *types.Candidate) ([]itemSummary, error) {
	if cand.Crop == nil {
		return nil, fmt.Errorf("%w: candidate has no crop", ErrPermanent)
	}
	png, err := processing.EncodePNG(cand.Crop)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	body, err := json.Marshal(searchRequest{Image: base64.StdEncoding.EncodeToString(png)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	endpoint := c.searchURL(cand.Query(), cand.CategoryID)

	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer c.inflight.Release(1)

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		items, err := c.do(ctx, endpoint, body)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}
		if attempt == c.opts.MaxAttempts-1 {
			break
		}

		delay := c.opts.BaseBackoff << attempt
		c.logger.Warn("marketplace request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.opts.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := c.opts.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.opts.MaxAttempts, lastErr)
}

func (c *Client) searchURL(query, categoryID string) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("category_ids", categoryID)
	q.Set("aspect_filter", "categoryId:"+categoryID)
	return c.opts.Endpoint + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte) ([]itemSummary, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: access token: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	// eBay reports token_type "Application Access Token", so the scheme is set explicitly.
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if c.opts.MarketplaceID != "" {
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.opts.MarketplaceID)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPermanent, err)
	}
	return out.ItemSummaries, nil
}

// links keeps listings that report categoryID among their categories, in response order,
// up to the configured limit.
func (c *Client) links(items []itemSummary, categoryID string) []string {
	links := []string{}
	for _, item := range items {
		if len(links) >= c.opts.Limit {
			break
		}
		if item.ItemWebURL == "" || !inCategory(item, categoryID) {
			continue
		}
		links = append(links, AffiliateURL(item.ItemWebURL, c.opts.AffiliateID))
	}
	return links
}

func inCategory(item itemSummary, categoryID string) bool {
	for _, cat := range item.Categories {
		if cat.CategoryID == categoryID {
			return true
		}
	}
	return false
}

// AffiliateURL appends the partner network tracking parameters to a listing URL.
func AffiliateURL(itemURL, affiliateID string) string {
	if affiliateID == "" {
		return itemURL
	}
	return itemURL + "&mkcid=1&mkrid=" + affiliateID + "&campid=" + affiliateID + "&toolid=10001"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
