/**
 * @description
 * This file contains the HTTP handler functions of the dashboard BFF.
 * Handlers are responsible for parsing incoming requests, calling the session
 * store or the view service, and writing the HTTP response.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/joelwasike/globpay-crypto-dash/internal/app"
	"github.com/joelwasike/globpay-crypto-dash/internal/navigation"
	"github.com/joelwasike/globpay-crypto-dash/internal/session"
	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
)

// SessionStore is the part of the session store the handlers use.
type SessionStore interface {
	State() session.State
	Current() (session.Identity, bool)
	Login(ctx context.Context, email, password string) session.LoginResult
	Logout(ctx context.Context) error
}

// Handler holds the services that handlers will interact with.
type Handler struct {
	service  *app.Service
	sessions SessionStore
	bus      *navigation.Bus
	logger   zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(service *app.Service, sessions SessionStore, bus *navigation.Bus, logger zerolog.Logger) *Handler {
	return &Handler{service: service, sessions: sessions, bus: bus, logger: logger}
}

type errorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	State    session.State     `json:"state"`
	Identity *session.Identity `json:"identity,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// handleGetSession reports who is logged in, plus any redirect raised since the last poll.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{State: h.sessions.State()}
	if id, ok := h.sessions.Current(); ok {
		resp.Identity = &id
	} else if h.bus != nil {
		if target, ok := h.bus.Pending(); ok {
			resp.Redirect = target
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// handleLogin exchanges credentials for a session.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	result := h.sessions.Login(r.Context(), req.Email, req.Password)
	if !result.Success {
		respondWithJSON(w, http.StatusUnauthorized, result)
		return
	}

	id, _ := h.sessions.Current()
	respondWithJSON(w, http.StatusOK, struct {
		session.LoginResult
		Identity session.Identity `json:"identity"`
	}{LoginResult: result, Identity: id})
}

// handleLogout ends the session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("logout could not clear the stored token")
	}
	respondWithJSON(w, http.StatusOK, session.LoginResult{Success: true})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadDashboard)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := h.paging(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	view, err := h.service.Transactions(r.Context(), app.TransactionQuery{
		Page:       page,
		Limit:      limit,
		Status:     q.Get("status"),
		FromDate:   q.Get("from_date"),
		ToDate:     q.Get("to_date"),
		DepositID:  q.Get("deposit_id"),
		MerchantID: q.Get("merchant_id"),
	})
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadTransactions)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDeposits(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := h.paging(w, r)
	if !ok {
		return
	}
	view, err := h.service.Deposits(r.Context(), app.ListQuery{Page: page, Limit: limit, MerchantID: r.URL.Query().Get("merchant_id")})
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadDeposits)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := h.paging(w, r)
	if !ok {
		return
	}
	view, err := h.service.Withdrawals(r.Context(), app.ListQuery{Page: page, Limit: limit, MerchantID: r.URL.Query().Get("merchant_id")})
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadWithdrawals)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DestinationAddress string `json:"destination_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	res, err := h.service.Withdraw(r.Context(), req.DestinationAddress)
	if err != nil {
		h.respondWithError(w, r, err, app.MsgWithdrawFailed)
		return
	}
	respondWithJSON(w, http.StatusOK, struct {
		Message string                        `json:"message"`
		Result  *gatewayclient.WithdrawResult `json:"result"`
	}{Message: "Withdrawal initiated successfully.", Result: res})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.service.Analytics(r.Context(), app.AnalyticsQuery{
		FromDate: q.Get("from_date"),
		ToDate:   q.Get("to_date"),
		GroupBy:  q.Get("group_by"),
	})
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadAnalytics)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context())
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadProfile)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var form app.ProfileForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.service.UpdateProfile(r.Context(), form); err != nil {
		h.respondWithError(w, r, err, app.MsgUpdateProfile)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "Profile updated."})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var form app.PasswordForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.service.ChangePassword(r.Context(), form); err != nil {
		h.respondWithError(w, r, err, app.MsgUpdatePassword)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "Password updated."})
}

func (h *Handler) handleRegenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.service.RegenerateAPIKey(r.Context())
	if err != nil {
		h.respondWithError(w, r, err, app.MsgRegenerateKey)
		return
	}
	respondWithJSON(w, http.StatusOK, struct {
		APIKey  string `json:"api_key"`
		Message string `json:"message"`
	}{APIKey: key, Message: "API key regenerated. Store it securely; it will not be shown again."})
}

func (h *Handler) handleMerchants(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := h.paging(w, r)
	if !ok {
		return
	}
	view, err := h.service.Merchants(r.Context(), app.ListQuery{Page: page, Limit: limit})
	if err != nil {
		h.respondWithError(w, r, err, app.MsgLoadMerchants)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCreateMerchant(w http.ResponseWriter, r *http.Request) {
	var form app.MerchantForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	merchant, err := h.service.CreateMerchant(r.Context(), form)
	if err != nil {
		h.respondWithError(w, r, err, app.MsgCreateMerchant)
		return
	}
	respondWithJSON(w, http.StatusCreated, struct {
		Merchant interface{} `json:"merchant"`
	}{Merchant: merchant})
}

// paging reads page and limit, answering 400 on malformed values.
func (h *Handler) paging(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	q := r.URL.Query()
	var err error
	if raw := q.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 0 {
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "page must be a positive integer"})
			return 0, 0, false
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return 0, 0, false
		}
	}
	return page, limit, true
}

// respondWithError maps a view error onto the BFF's status contract.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var vErr *app.ValidationError
	switch {
	case errors.Is(err, context.Canceled):
		h.logger.Debug().Str("path", r.URL.Path).Msg("request cancelled by client")
		return
	case errors.Is(err, context.DeadlineExceeded):
		respondWithJSON(w, http.StatusGatewayTimeout, errorResponse{Error: fallback})
	case gatewayclient.IsUnauthorized(err):
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{
			Error:    gatewayclient.UserMessage(err, "Session expired"),
			Redirect: navigation.LoginPath,
		})
	case errors.As(err, &vErr):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message})
	case errors.Is(err, app.ErrAdminOnly):
		respondWithJSON(w, http.StatusForbidden, errorResponse{Error: "This page is only available to administrators."})
	default:
		status := gatewayclient.StatusCode(err)
		if status >= 400 && status < 500 {
			respondWithJSON(w, status, errorResponse{Error: gatewayclient.UserMessage(err, fallback)})
			return
		}
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("view request failed")
		respondWithJSON(w, http.StatusBadGateway, errorResponse{Error: fallback})
	}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
