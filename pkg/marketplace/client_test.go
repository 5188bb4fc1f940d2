package marketplace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wha7/wha7/pkg/category"
	"github.com/wha7/wha7/pkg/types"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(t *testing.T, endpoint string, sleeps *recordedSleeps) *Client {
	t.Helper()
	c, err := New(Options{
		Endpoint:      endpoint,
		AffiliateID:   "AFF1",
		MarketplaceID: "EBAY_US",
		Sleep:         sleeps.sleep,
	}, StaticToken("tok"), category.New(category.ModeGendered), nil)
	require.NoError(t, err)
	return c
}

func jacket() *types.Candidate {
	return &types.Candidate{ConceptName: "jacket", Crop: image.NewRGBA(image.Rect(0, 0, 4, 4))}
}

func item(url string, categories ...string) map[string]any {
	cats := make([]map[string]string, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, map[string]string{"categoryId": c})
	}
	return map[string]any{"itemWebUrl": url, "categories": cats}
}

func TestSearchRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "EBAY_US", r.Header.Get("X-EBAY-C-MARKETPLACE-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		q := r.URL.Query()
		assert.Equal(t, "denim jacket", q.Get("q"))
		assert.Equal(t, "63862", q.Get("category_ids"))
		assert.Equal(t, "categoryId:63862", q.Get("aspect_filter"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		png, err := base64.StdEncoding.DecodeString(body["image"])
		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))

		_ = json.NewEncoder(w).Encode(map[string]any{"itemSummaries": []any{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &recordedSleeps{})
	cand := jacket()
	cand.Style = "denim"
	c.Search(context.Background(), cand, types.Women)

	assert.Equal(t, "63862", cand.CategoryID)
	assert.NotNil(t, cand.TopLinks)
	assert.Empty(t, cand.TopLinks)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	c := newTestClient(t, srv.URL, sleeps)
	cand := jacket()
	c.Search(context.Background(), cand, types.Women)

	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)
	assert.Empty(t, cand.TopLinks)
}

func TestSearchStopsRetryingWhenCancelled(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := New(Options{
		Endpoint:    srv.URL,
		BaseBackoff: time.Minute,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return sleepContext(ctx, d)
		},
	}, StaticToken("tok"), category.New(category.ModeGendered), nil)
	require.NoError(t, err)

	start := time.Now()
	cand := jacket()
	c.Search(ctx, cand, types.Women)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), attempts.Load())
	assert.NotNil(t, cand.TopLinks)
	assert.Empty(t, cand.TopLinks)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestSearchRecoversAfterServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"itemSummaries": []any{
			item("https://ebay.com/itm/1?x=1", "63862"),
		}})
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	c := newTestClient(t, srv.URL, sleeps)
	cand := jacket()
	c.Search(context.Background(), cand, types.Women)

	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeps.delays)
	assert.Len(t, cand.TopLinks, 1)
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			sleeps := &recordedSleeps{}
			c := newTestClient(t, srv.URL, sleeps)
			cand := jacket()
			c.Search(context.Background(), cand, types.Women)

			assert.Equal(t, int32(1), attempts.Load())
			assert.Empty(t, sleeps.delays)
			assert.Empty(t, cand.TopLinks)
		})
	}
}

func TestSearchCategoryRefilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"itemSummaries": []any{
			item("https://ebay.com/itm/1?a=1", "11450"),
			item("https://ebay.com/itm/2?a=1", "15724", "63862"),
			item("https://ebay.com/itm/3?a=1", "57988"),
			item("https://ebay.com/itm/4?a=1", "63862"),
			item("https://ebay.com/itm/5?a=1"),
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &recordedSleeps{})
	cand := jacket()
	c.Search(context.Background(), cand, types.Women)

	require.Len(t, cand.TopLinks, 2)
	assert.True(t, strings.HasPrefix(cand.TopLinks[0], "https://ebay.com/itm/2?a=1&"))
	assert.True(t, strings.HasPrefix(cand.TopLinks[1], "https://ebay.com/itm/4?a=1&"))
}

func TestSearchCapsLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := make([]any, 0, 6)
		for i := 0; i < 6; i++ {
			items = append(items, item(fmt.Sprintf("https://ebay.com/itm/%d", i), "57988"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"itemSummaries": items})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &recordedSleeps{})
	cand := jacket()
	c.Search(context.Background(), cand, types.Men)

	assert.Equal(t, "57988", cand.CategoryID)
	require.Len(t, cand.TopLinks, 3)
	assert.Equal(t, AffiliateURL("https://ebay.com/itm/0", "AFF1"), cand.TopLinks[0])
}

func TestSearchTokenFailureIsPermanent(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
	}))
	defer srv.Close()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	sleeps := &recordedSleeps{}
	c, err := New(Options{Endpoint: srv.URL, Sleep: sleeps.sleep},
		NewTokenSource(context.Background(), "id", "secret", tokenSrv.URL),
		category.New(category.ModeGendered), nil)
	require.NoError(t, err)

	cand := jacket()
	c.Search(context.Background(), cand, types.Women)
	assert.Zero(t, attempts.Load())
	assert.Empty(t, sleeps.delays)
	assert.Empty(t, cand.TopLinks)
}

func TestAffiliateURL(t *testing.T) {
	got := AffiliateURL("https://ebay.com/itm/123", "AFF1")
	assert.True(t, strings.HasSuffix(got, "&mkcid=1&mkrid=AFF1&campid=AFF1&toolid=10001"))
	assert.Equal(t, "https://ebay.com/itm/123", AffiliateURL("https://ebay.com/itm/123", ""))
}

func TestStatusErrorClassification(t *testing.T) {
	assert.ErrorIs(t, &StatusError{StatusCode: 503}, ErrTransient)
	assert.ErrorIs(t, &StatusError{StatusCode: 500}, ErrTransient)
	assert.ErrorIs(t, &StatusError{StatusCode: 404}, ErrPermanent)
	assert.NotErrorIs(t, &StatusError{StatusCode: 404}, ErrTransient)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{}, nil, category.New(category.ModeGendered), nil)
	assert.Error(t, err)

	_, err = New(Options{}, StaticToken("t"), nil, nil)
	assert.Error(t, err)

	_, err = New(Options{Endpoint: "::bad"}, StaticToken("t"), category.New(category.ModeGendered), nil)
	assert.Error(t, err)
}

func TestNewTokenSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "app-id", user)
		assert.Equal(t, "cert-id", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, DefaultScope, r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"v^1.1#abc","token_type":"Application Access Token","expires_in":7200}`))
	}))
	defer srv.Close()

	tok, err := NewTokenSource(context.Background(), "app-id", "cert-id", srv.URL).Token()
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#abc", tok.AccessToken)
}
