package gatewayclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *memTokens) SetToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memTokens) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

type recordedRequest struct {
	Path          string
	Authorization string
	ContentType   string
	Accept        string
	RequestID     string
	Query         string
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   map[string]int
	bodies   map[string]string
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()
	g := &fakeGateway{status: map[string]int{}, bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests = append(g.requests, recordedRequest{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Accept:        r.Header.Get("Accept"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Query:         r.URL.RawQuery,
		})
		status, ok := g.status[r.URL.Path]
		body := g.bodies[r.URL.Path]
		g.mu.Unlock()

		if !ok {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body == "" {
			body = "{}"
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *fakeGateway) respond(path string, status int, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[path] = status
	g.bodies[path] = body
}

func (g *fakeGateway) last() recordedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type observation struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	o.seen = append(o.seen, observation{method: method, path: path, status: status})
}

func TestResolveBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, ResolveBaseURL(""))
	assert.Equal(t, DefaultBaseURL, ResolveBaseURL("   "))
	assert.Equal(t, "http://localhost:4000", ResolveBaseURL(" http://localhost:4000/ "))
}

func TestClient_AttachesBearerAndDefaultHeaders(t *testing.T) {
	gw, srv := newFakeGateway(t)
	tokens := &memTokens{token: "key_live_123"}
	client := NewClient(srv.URL, tokens)

	_, err := client.Summary(context.Background())
	require.NoError(t, err)

	req := gw.last()
	assert.Equal(t, "Bearer key_live_123", req.Authorization)
	assert.Equal(t, "application/json", req.ContentType)
	assert.Equal(t, "application/json", req.Accept)
	assert.NotEmpty(t, req.RequestID)
}

func TestClient_NoBearerWithoutToken(t *testing.T) {
	gw, srv := newFakeGateway(t)
	client := NewClient(srv.URL, &memTokens{})

	_, err := client.Summary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gw.last().Authorization)
}

func TestClient_LoginIsExemptFromBearer(t *testing.T) {
	gw, srv := newFakeGateway(t)
	gw.respond(LoginPath, http.StatusOK, `{"api_key":"fresh","merchant_id":"m_1","email":"a@b.co"}`)
	client := NewClient(srv.URL, &memTokens{token: "stale"})

	resp, err := client.Login(context.Background(), "a@b.co", "secret")
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.APIKey)
	assert.Empty(t, gw.last().Authorization)
}

func TestClient_UnauthorizedClearsTokenAndNotifies(t *testing.T) {
	paths := []string{"/api/dashboard/summary", "/api/dashboard/transactions", "/api/admin/merchants"}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			gw, srv := newFakeGateway(t)
			gw.respond(path, http.StatusUnauthorized, `{"error":"invalid api key"}`)

			tokens := &memTokens{token: "revoked"}
			var notified []string
			client := NewClient(srv.URL, tokens, WithUnauthorizedHandler(func(ctx context.Context, p string) {
				notified = append(notified, p)
			}))

			var err error
			switch path {
			case "/api/dashboard/summary":
				_, err = client.Summary(context.Background())
			case "/api/dashboard/transactions":
				_, err = client.Transactions(context.Background(), TransactionFilter{})
			default:
				_, err = client.Merchants(context.Background(), ListFilter{})
			}

			require.Error(t, err)
			assert.True(t, IsUnauthorized(err))
			assert.Equal(t, "invalid api key", UserMessage(err, "fallback"))
			assert.Equal(t, []string{path}, notified)

			_, tokenErr := tokens.Token(context.Background())
			assert.True(t, errors.Is(tokenErr, ErrNoToken))
		})
	}
}

func TestClient_LoginUnauthorizedDoesNotNotify(t *testing.T) {
	gw, srv := newFakeGateway(t)
	gw.respond(LoginPath, http.StatusUnauthorized, `{}`)

	notified := false
	client := NewClient(srv.URL, &memTokens{}, WithUnauthorizedHandler(func(ctx context.Context, p string) {
		notified = true
	}))

	_, err := client.Login(context.Background(), "bad@x.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, notified)
}

func TestClient_OtherErrorsPassThrough(t *testing.T) {
	gw, srv := newFakeGateway(t)
	gw.respond("/api/dashboard/withdraw", http.StatusBadRequest, `{"error":"insufficient balance"}`)

	tokens := &memTokens{token: "key"}
	notified := false
	client := NewClient(srv.URL, tokens, WithUnauthorizedHandler(func(ctx context.Context, p string) {
		notified = true
	}))

	_, err := client.Withdraw(context.Background(), "So1anaAddr")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "insufficient balance", apiErr.Message)
	assert.False(t, notified)

	token, tokenErr := tokens.Token(context.Background())
	require.NoError(t, tokenErr)
	assert.Equal(t, "key", token)
}

func TestClient_NetworkErrorUsesFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	observer := &recordingObserver{}
	client := NewClient(srv.URL, &memTokens{}, WithObserver(observer))

	_, err := client.Summary(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
	assert.Equal(t, "Failed to load", UserMessage(err, "Failed to load"))
	require.Len(t, observer.seen, 1)
	assert.Equal(t, 0, observer.seen[0].status)
}

func TestClient_TransactionFilterEncoding(t *testing.T) {
	gw, srv := newFakeGateway(t)
	gw.respond("/api/dashboard/transactions", http.StatusOK,
		`{"transactions":[{"id":"t1","amount":12.5,"status":"completed"}],"pagination":{"total":1,"total_pages":1}}`)
	client := NewClient(srv.URL, &memTokens{token: "k"})

	page, err := client.Transactions(context.Background(), TransactionFilter{
		ListFilter: ListFilter{Page: 2, Limit: 20, MerchantID: "m_9"},
		Status:     "pending",
		FromDate:   "2024-01-01",
	})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, 12.5, page.Transactions[0].Amount.Float64())
	assert.Equal(t, 1, page.Pagination.Total)
	assert.Equal(t, "from_date=2024-01-01&limit=20&merchant_id=m_9&page=2&status=pending", gw.last().Query)
}

func TestClient_CreateMerchantAcceptsWrappedAndBareBodies(t *testing.T) {
	gw, srv := newFakeGateway(t)
	client := NewClient(srv.URL, &memTokens{token: "admin"})

	gw.respond("/api/admin/merchants", http.StatusCreated, `{"merchant":{"id":"m1","email":"shop@x.com","api_key":"k1"}}`)
	wrapped, err := client.CreateMerchant(context.Background(), NewMerchant{Email: "shop@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "k1", wrapped.APIKey)

	gw.respond("/api/admin/merchants", http.StatusCreated, `{"id":"m2","email":"bare@x.com"}`)
	bare, err := client.CreateMerchant(context.Background(), NewMerchant{Email: "bare@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "m2", bare.ID)
}

func TestNewAPIError_FallsBackToMessageField(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"message": "rate limited"})
	err := newAPIError(http.StatusTooManyRequests, "/x", body)
	assert.Equal(t, "rate limited", err.Message)

	plain := newAPIError(http.StatusBadGateway, "/x", []byte("<html>"))
	assert.Equal(t, "", plain.Message)
	assert.Contains(t, plain.Error(), "502")
}
