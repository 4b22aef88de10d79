package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelwasike/globpay-crypto-dash/internal/tokenstore"
	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
	"github.com/joelwasike/globpay-crypto-dash/pkg/rabbitmq"
)

type stubResponse struct {
	status int
	body   string
}

type gatewayStub struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	calls     []string
	auth      []string
}

func (g *gatewayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.calls = append(g.calls, r.URL.Path)
	g.auth = append(g.auth, r.Header.Get("Authorization"))
	resp, ok := g.responses[r.URL.Path]
	g.mu.Unlock()

	if !ok {
		resp = stubResponse{status: http.StatusOK, body: `{}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (g *gatewayStub) set(path string, status int, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[path] = stubResponse{status: status, body: body}
}

func (g *gatewayStub) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *gatewayStub) lastAuth() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.auth[len(g.auth)-1]
}

type capturedEvents struct {
	mu     sync.Mutex
	events []rabbitmq.DashboardEvent
}

func (c *capturedEvents) PublishDashboardEvent(ctx context.Context, event rabbitmq.DashboardEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	gateway *gatewayStub
	tokens  *tokenstore.Memory
	client  *gatewayclient.Client
	store   *Store
	events  *capturedEvents
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stub := &gatewayStub{responses: map[string]stubResponse{}}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	tokens := tokenstore.NewMemory()
	client := gatewayclient.NewClient(srv.URL, tokens, gatewayclient.WithLogger(zerolog.Nop()))
	events := &capturedEvents{}
	store := NewStore(client, tokens, WithPublisher(events), WithLogger(zerolog.Nop()))
	client.SetUnauthorizedHandler(func(ctx context.Context, path string) {
		store.Invalidate(ctx)
	})

	return &harness{gateway: stub, tokens: tokens, client: client, store: store, events: events}
}

const profileBody = `{"id":"p_1","merchant_id":"m_1","email":"shop@x.com","business_name":"Shop","is_admin":false}`

func TestRestore_NoTokenSkipsNetwork(t *testing.T) {
	h := newHarness(t)

	state := h.store.Restore(context.Background())

	assert.Equal(t, StateUnauthenticated, state)
	assert.Equal(t, StateUnauthenticated, h.store.State())
	assert.Zero(t, h.gateway.callCount())
}

func TestRestore_ValidTokenAuthenticates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tokens.SetToken(context.Background(), "key_1"))
	h.gateway.set(gatewayclient.ProfilePath, http.StatusOK, profileBody)

	state := h.store.Restore(context.Background())

	require.Equal(t, StateAuthenticated, state)
	id, ok := h.store.Current()
	require.True(t, ok)
	assert.Equal(t, "m_1", id.MerchantID)
	assert.Equal(t, "Shop", id.DisplayName)
	assert.Equal(t, "key_1", id.BearerToken)
	assert.Equal(t, "Bearer key_1", h.gateway.lastAuth())
}

func TestRestore_FailedValidationClearsToken(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.tokens.SetToken(context.Background(), "stale"))
			h.gateway.set(gatewayclient.ProfilePath, tt.status, `{"error":"nope"}`)

			state := h.store.Restore(context.Background())

			assert.Equal(t, StateUnauthenticated, state)
			_, err := h.tokens.Token(context.Background())
			assert.ErrorIs(t, err, gatewayclient.ErrNoToken)
			_, ok := h.store.Current()
			assert.False(t, ok)
		})
	}
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	h.gateway.set(gatewayclient.LoginPath, http.StatusOK,
		`{"api_key":"key_new","merchant_id":"m_2","email":"a@x.com","business_name":"","is_admin":true}`)

	res := h.store.Login(context.Background(), "a@x.com", "secret123")

	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	token, err := h.tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key_new", token)

	id, ok := h.store.Current()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", id.DisplayName, "falls back to email without a business name")
	assert.True(t, id.IsAdmin)
	assert.Equal(t, []string{rabbitmq.EventLogin}, h.events.types())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, wantMsg: MsgInvalidCredentials},
		{name: "gateway message wins", status: http.StatusUnauthorized, body: `{"error":"Account disabled"}`, wantMsg: "Account disabled"},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantMsg: MsgLoginFailed},
		{name: "no api key", status: http.StatusOK, body: `{"merchant_id":"m_1"}`, wantMsg: MsgNoAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.Restore(context.Background())
			h.gateway.set(gatewayclient.LoginPath, tt.status, tt.body)

			res := h.store.Login(context.Background(), "bad@x.com", "wrong")

			assert.Equal(t, LoginResult{Success: false, Error: tt.wantMsg}, res)
			assert.Equal(t, StateUnauthenticated, h.store.State())
			_, err := h.tokens.Token(context.Background())
			assert.ErrorIs(t, err, gatewayclient.ErrNoToken)
			assert.Equal(t, []string{rabbitmq.EventLoginFailed}, h.events.types())
		})
	}
}

func TestLogin_RejectedReloginEndsLiveSession(t *testing.T) {
	h := newHarness(t)
	h.gateway.set(gatewayclient.LoginPath, http.StatusOK, `{"api_key":"key_1","merchant_id":"m_1","email":"a@x.com"}`)
	require.True(t, h.store.Login(context.Background(), "a@x.com", "pw").Success)
	h.gateway.set(gatewayclient.LoginPath, http.StatusUnauthorized, `{}`)

	res := h.store.Login(context.Background(), "other@x.com", "bad")

	assert.Equal(t, LoginResult{Success: false, Error: MsgInvalidCredentials}, res)
	assert.Equal(t, StateUnauthenticated, h.store.State())
	_, ok := h.store.Current()
	assert.False(t, ok)
	_, err := h.tokens.Token(context.Background())
	assert.ErrorIs(t, err, gatewayclient.ErrNoToken)
	assert.Equal(t, []string{rabbitmq.EventLogin, rabbitmq.EventSessionExpired, rabbitmq.EventLoginFailed}, h.events.types())
}

func TestLogin_ServerErrorKeepsLiveSession(t *testing.T) {
	h := newHarness(t)
	h.gateway.set(gatewayclient.LoginPath, http.StatusOK, `{"api_key":"key_1","merchant_id":"m_1","email":"a@x.com"}`)
	require.True(t, h.store.Login(context.Background(), "a@x.com", "pw").Success)
	h.gateway.set(gatewayclient.LoginPath, http.StatusInternalServerError, `oops`)

	res := h.store.Login(context.Background(), "a@x.com", "pw")

	assert.False(t, res.Success)
	assert.Equal(t, StateAuthenticated, h.store.State())
	token, err := h.tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key_1", token)
}

func TestLogout_NextCallHasNoAuthorization(t *testing.T) {
	h := newHarness(t)
	h.gateway.set(gatewayclient.LoginPath, http.StatusOK, `{"api_key":"key_1","merchant_id":"m_1","email":"a@x.com"}`)
	require.True(t, h.store.Login(context.Background(), "a@x.com", "pw").Success)

	require.NoError(t, h.store.Logout(context.Background()))

	assert.Equal(t, StateUnauthenticated, h.store.State())
	_, _ = h.client.Summary(context.Background())
	assert.Empty(t, h.gateway.lastAuth())
	assert.Equal(t, []string{rabbitmq.EventLogin, rabbitmq.EventLogout}, h.events.types())
}

func TestInvalidate_OnGateway401(t *testing.T) {
	h := newHarness(t)
	h.gateway.set(gatewayclient.LoginPath, http.StatusOK, `{"api_key":"key_1","merchant_id":"m_1","email":"a@x.com"}`)
	require.True(t, h.store.Login(context.Background(), "a@x.com", "pw").Success)
	h.gateway.set("/api/dashboard/summary", http.StatusUnauthorized, `{"error":"Invalid API key"}`)

	_, err := h.client.Summary(context.Background())

	require.True(t, gatewayclient.IsUnauthorized(err))
	assert.Equal(t, StateUnauthenticated, h.store.State())
	assert.Equal(t, []string{rabbitmq.EventLogin, rabbitmq.EventSessionExpired}, h.events.types())
}

func TestRevalidate(t *testing.T) {
	t.Run("refreshes identity", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.tokens.SetToken(context.Background(), "key_1"))
		h.gateway.set(gatewayclient.ProfilePath, http.StatusOK, profileBody)
		require.Equal(t, StateAuthenticated, h.store.Restore(context.Background()))

		h.gateway.set(gatewayclient.ProfilePath, http.StatusOK,
			`{"id":"p_1","merchant_id":"m_1","email":"shop@x.com","business_name":"Renamed"}`)
		require.NoError(t, h.store.Revalidate(context.Background()))

		id, _ := h.store.Current()
		assert.Equal(t, "Renamed", id.DisplayName)
		assert.Equal(t, "key_1", id.BearerToken)
	})

	t.Run("transient error keeps session", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.tokens.SetToken(context.Background(), "key_1"))
		h.gateway.set(gatewayclient.ProfilePath, http.StatusOK, profileBody)
		require.Equal(t, StateAuthenticated, h.store.Restore(context.Background()))

		h.gateway.set(gatewayclient.ProfilePath, http.StatusBadGateway, `{}`)
		require.Error(t, h.store.Revalidate(context.Background()))
		assert.Equal(t, StateAuthenticated, h.store.State())
	})

	t.Run("revoked key ends session", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.tokens.SetToken(context.Background(), "key_1"))
		h.gateway.set(gatewayclient.ProfilePath, http.StatusOK, profileBody)
		require.Equal(t, StateAuthenticated, h.store.Restore(context.Background()))

		h.gateway.set(gatewayclient.ProfilePath, http.StatusUnauthorized, `{}`)
		err := h.store.Revalidate(context.Background())

		assert.True(t, gatewayclient.IsUnauthorized(err))
		assert.Equal(t, StateUnauthenticated, h.store.State())
		_, tokenErr := h.tokens.Token(context.Background())
		assert.ErrorIs(t, tokenErr, gatewayclient.ErrNoToken)
	})

	t.Run("no session is a no-op", func(t *testing.T) {
		h := newHarness(t)
		h.store.Restore(context.Background())
		require.NoError(t, h.store.Revalidate(context.Background()))
		assert.Zero(t, h.gateway.callCount())
	})
}
