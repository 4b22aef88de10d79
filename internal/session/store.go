/**
 * @description
 * Package session is the single source of truth for "who is logged in". The
 * Store derives the merchant identity from the persisted API key, exchanges
 * credentials for a new key on login and forgets everything on logout.
 *
 * @notes
 * - Redirecting to the login screen after a 401 is not done here: the gateway
 *   client raises it for every endpoint and the application wires that callback
 *   to Invalidate plus the navigation bus.
 * - The store never holds its lock across a gateway call, because the 401
 *   callback re-enters the store through Invalidate.
 */
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joelwasike/globpay-crypto-dash/internal/domain"
	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
	"github.com/joelwasike/globpay-crypto-dash/pkg/rabbitmq"
)

// State of the session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
)

// User-facing login failure messages.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgLoginFailed        = "Login failed"
	MsgNoAPIKey           = "Invalid response - no API key"
)

// Identity is the logged-in merchant.
type Identity struct {
	ID           string `json:"id"`
	MerchantID   string `json:"merchant_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"name"`
	BusinessName string `json:"business_name"`
	IsAdmin      bool   `json:"is_admin"`
	BearerToken  string `json:"-"`
}

// LoginResult is what the login form shows.
type LoginResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Gateway is the part of the gateway API the store needs.
type Gateway interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResponse, error)
	Profile(ctx context.Context) (*domain.Profile, error)
}

// EventPublisher receives audit events.
type EventPublisher interface {
	PublishDashboardEvent(ctx context.Context, event rabbitmq.DashboardEvent) error
}

// EventRecorder counts session transitions.
type EventRecorder interface {
	SessionEvent(event string)
}

// Store holds the current session.
type Store struct {
	mu       sync.RWMutex
	state    State
	identity *Identity

	gateway  Gateway
	tokens   gatewayclient.TokenStore
	events   EventPublisher
	recorder EventRecorder
	logger   zerolog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithPublisher publishes audit events for logins, logouts and expiries.
func WithPublisher(p EventPublisher) Option {
	return func(s *Store) { s.events = p }
}

// WithRecorder counts session transitions.
func WithRecorder(r EventRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store in the loading state. Call Restore once at startup.
func NewStore(gateway Gateway, tokens gatewayclient.TokenStore, opts ...Option) *Store {
	s := &Store{
		state:   StateLoading,
		gateway: gateway,
		tokens:  tokens,
		logger:  log.Logger.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns the logged-in identity.
func (s *Store) Current() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated || s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Restore validates a persisted token against the profile endpoint. Without a
// token the session is unauthenticated and no request is made. A failed
// validation of any kind removes the token.
func (s *Store) Restore(ctx context.Context) State {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		if !errors.Is(err, gatewayclient.ErrNoToken) {
			s.logger.Error().Err(err).Msg("Failed to read persisted token")
		}
		s.setUnauthenticated()
		return StateUnauthenticated
	}

	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()

	profile, err := s.gateway.Profile(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Persisted token rejected; clearing it")
		if clearErr := s.tokens.ClearToken(ctx); clearErr != nil {
			s.logger.Error().Err(clearErr).Msg("Failed to clear persisted token")
		}
		s.setUnauthenticated()
		s.record("restore_failed")
		return StateUnauthenticated
	}

	identity := identityFromProfile(profile, token)
	s.mu.Lock()
	s.identity = &identity
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.record("restored")
	s.logger.Info().Str("merchant_id", identity.MerchantID).Msg("Session restored")
	return StateAuthenticated
}

// Login exchanges credentials for an API key and persists it.
func (s *Store) Login(ctx context.Context, email, password string) LoginResult {
	email = strings.TrimSpace(email)

	resp, err := s.gateway.Login(ctx, email, password)
	if err != nil {
		fallback := MsgLoginFailed
		if gatewayclient.StatusCode(err) == http.StatusUnauthorized {
			fallback = MsgInvalidCredentials
			// The client has already dropped the stored token.
			s.Invalidate(ctx)
		}
		msg := gatewayclient.UserMessage(err, fallback)
		s.loginFailed(ctx, email, msg)
		return LoginResult{Success: false, Error: msg}
	}

	if strings.TrimSpace(resp.APIKey) == "" {
		s.loginFailed(ctx, email, MsgNoAPIKey)
		return LoginResult{Success: false, Error: MsgNoAPIKey}
	}

	if err := s.tokens.SetToken(ctx, resp.APIKey); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist API key")
		s.loginFailed(ctx, email, MsgLoginFailed)
		return LoginResult{Success: false, Error: MsgLoginFailed}
	}

	identity := Identity{
		ID:           resp.MerchantID,
		MerchantID:   resp.MerchantID,
		Email:        resp.Email,
		DisplayName:  displayName(resp.BusinessName, resp.Email),
		BusinessName: resp.BusinessName,
		IsAdmin:      resp.IsAdmin,
		BearerToken:  resp.APIKey,
	}

	s.mu.Lock()
	s.identity = &identity
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.record("login")
	s.publish(ctx, rabbitmq.EventLogin, identity.MerchantID, identity.Email, nil)
	s.logger.Info().Str("merchant_id", identity.MerchantID).Bool("is_admin", identity.IsAdmin).Msg("Merchant logged in")
	return LoginResult{Success: true}
}

// Logout forgets the identity and removes the persisted token. No gateway call is made.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	previous := s.identity
	s.identity = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()

	err := s.tokens.ClearToken(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear persisted token on logout")
	}

	s.record("logout")
	if previous != nil {
		s.publish(ctx, rabbitmq.EventLogout, previous.MerchantID, previous.Email, nil)
	}
	return err
}

// Invalidate drops the in-memory identity after the gateway rejected the
// token. The token itself has already been cleared by the gateway client.
func (s *Store) Invalidate(ctx context.Context) {
	s.mu.Lock()
	previous := s.identity
	wasAuthenticated := s.state == StateAuthenticated
	s.identity = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()

	if !wasAuthenticated || previous == nil {
		return
	}
	s.record("expired")
	s.publish(ctx, rabbitmq.EventSessionExpired, previous.MerchantID, previous.Email, nil)
	s.logger.Warn().Str("merchant_id", previous.MerchantID).Msg("Session expired")
}

// Revalidate re-reads the profile of a live session and refreshes the
// identity. A 401 ends the session through the gateway client's callback;
// other errors leave the session untouched.
func (s *Store) Revalidate(ctx context.Context) error {
	s.mu.RLock()
	live := s.state == StateAuthenticated && s.identity != nil
	var token string
	if live {
		token = s.identity.BearerToken
	}
	s.mu.RUnlock()
	if !live {
		return nil
	}

	profile, err := s.gateway.Profile(ctx)
	if err != nil {
		if gatewayclient.IsUnauthorized(err) {
			// The client callback normally gets here first.
			s.Invalidate(ctx)
		}
		return err
	}

	identity := identityFromProfile(profile, token)
	s.mu.Lock()
	if s.state == StateAuthenticated {
		s.identity = &identity
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) setUnauthenticated() {
	s.mu.Lock()
	s.identity = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()
}

func (s *Store) loginFailed(ctx context.Context, email, msg string) {
	s.record("login_failed")
	s.publish(ctx, rabbitmq.EventLoginFailed, "", email, map[string]string{"reason": msg})
	s.logger.Info().Str("email", email).Str("reason", msg).Msg("Login failed")
}

func (s *Store) record(event string) {
	if s.recorder != nil {
		s.recorder.SessionEvent(event)
	}
}

func (s *Store) publish(ctx context.Context, eventType, merchantID, email string, detail map[string]string) {
	if s.events == nil {
		return
	}
	event := rabbitmq.NewEvent(eventType, merchantID, email, detail)
	if err := s.events.PublishDashboardEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish session event")
	}
}

func identityFromProfile(p *domain.Profile, token string) Identity {
	return Identity{
		ID:           p.ID,
		MerchantID:   p.MerchantID,
		Email:        p.Email,
		DisplayName:  displayName(p.BusinessName, p.Email),
		BusinessName: p.BusinessName,
		IsAdmin:      p.IsAdmin,
		BearerToken:  token,
	}
}

func displayName(businessName, email string) string {
	if strings.TrimSpace(businessName) != "" {
		return businessName
	}
	return email
}
