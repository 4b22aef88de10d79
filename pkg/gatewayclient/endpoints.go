package gatewayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/joelwasike/globpay-crypto-dash/internal/domain"
)

// ListFilter holds the query parameters shared by paginated list endpoints.
type ListFilter struct {
	Page       int
	Limit      int
	MerchantID string
}

// Values encodes the filter, omitting zero values.
func (f ListFilter) Values() url.Values {
	v := url.Values{}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.MerchantID != "" {
		v.Set("merchant_id", f.MerchantID)
	}
	return v
}

// TransactionFilter adds the transaction-specific filters.
type TransactionFilter struct {
	ListFilter
	Status    string
	FromDate  string
	ToDate    string
	DepositID string
}

// Values encodes the filter, omitting zero values.
func (f TransactionFilter) Values() url.Values {
	v := f.ListFilter.Values()
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.FromDate != "" {
		v.Set("from_date", f.FromDate)
	}
	if f.ToDate != "" {
		v.Set("to_date", f.ToDate)
	}
	if f.DepositID != "" {
		v.Set("deposit_id", f.DepositID)
	}
	return v
}

// OverviewFilter is the query of the analytics overview endpoint.
type OverviewFilter struct {
	FromDate string
	ToDate   string
	GroupBy  string
}

func (f OverviewFilter) values() url.Values {
	v := url.Values{}
	if f.FromDate != "" {
		v.Set("from_date", f.FromDate)
	}
	if f.ToDate != "" {
		v.Set("to_date", f.ToDate)
	}
	if f.GroupBy != "" {
		v.Set("group_by", f.GroupBy)
	}
	return v
}

// TransactionPage is one page of /api/dashboard/transactions.
type TransactionPage struct {
	Transactions []domain.APITransaction `json:"transactions"`
	Pagination   domain.Pagination       `json:"pagination"`
}

// DepositPage is one page of /api/dashboard/deposits.
type DepositPage struct {
	Deposits   []domain.Deposit  `json:"deposits"`
	Pagination domain.Pagination `json:"pagination"`
}

// WithdrawalPage is one page of /api/dashboard/withdrawals.
type WithdrawalPage struct {
	Withdrawals []domain.Withdrawal `json:"withdrawals"`
	Pagination  domain.Pagination   `json:"pagination"`
}

// MerchantPage is one page of /api/admin/merchants.
type MerchantPage struct {
	Merchants  []domain.Merchant `json:"merchants"`
	Pagination domain.Pagination `json:"pagination"`
}

// ProfileUpdate is the body of PUT /api/dashboard/profile. Empty fields are left unchanged.
type ProfileUpdate struct {
	BusinessName  string `json:"business_name,omitempty"`
	SolanaAddress string `json:"solana_address,omitempty"`
}

// NewMerchant is the body of POST /api/admin/merchants.
type NewMerchant struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	BusinessName string `json:"business_name"`
}

// WithdrawResult is the response of POST /api/dashboard/withdraw.
type WithdrawResult struct {
	Message    string             `json:"message,omitempty"`
	Withdrawal *domain.Withdrawal `json:"withdrawal,omitempty"`
}

// Login exchanges merchant credentials for an API key. The request never carries a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp domain.LoginResponse
	if err := c.do(ctx, http.MethodPost, LoginPath, nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile fetches the authenticated merchant.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	var resp domain.Profile
	if err := c.do(ctx, http.MethodGet, ProfilePath, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateProfile changes the business name and/or payout address.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.do(ctx, http.MethodPut, ProfilePath, nil, update, nil)
}

// ChangePassword changes the merchant password.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	payload := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	return c.do(ctx, http.MethodPut, ProfilePath+"/password", nil, payload, nil)
}

// RegenerateAPIKey issues a new API key and returns it.
func (c *Client) RegenerateAPIKey(ctx context.Context) (string, error) {
	var resp struct {
		APIKey string `json:"api_key"`
	}
	if err := c.do(ctx, http.MethodPost, ProfilePath+"/regenerate-api-key", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.APIKey, nil
}

// Summary fetches the dashboard headline counters.
func (c *Client) Summary(ctx context.Context) (*domain.Summary, error) {
	var resp struct {
		Summary domain.Summary `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/summary", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Summary, nil
}

// Transactions lists transactions.
func (c *Client) Transactions(ctx context.Context, filter TransactionFilter) (*TransactionPage, error) {
	var resp TransactionPage
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/transactions", filter.Values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deposits lists deposits.
func (c *Client) Deposits(ctx context.Context, filter ListFilter) (*DepositPage, error) {
	var resp DepositPage
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/deposits", filter.Values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Withdrawals lists withdrawals.
func (c *Client) Withdrawals(ctx context.Context, filter ListFilter) (*WithdrawalPage, error) {
	var resp WithdrawalPage
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/withdrawals", filter.Values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Withdraw sends the available balance to destinationAddress.
func (c *Client) Withdraw(ctx context.Context, destinationAddress string) (*WithdrawResult, error) {
	payload := map[string]string{"destination_address": destinationAddress}
	var resp WithdrawResult
	if err := c.do(ctx, http.MethodPost, "/api/dashboard/withdraw", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyticsByStatus fetches transaction counts per status.
func (c *Client) AnalyticsByStatus(ctx context.Context) (*domain.StatusBreakdown, error) {
	var resp struct {
		ByStatus domain.StatusBreakdown `json:"by_status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/analytics/by-status", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.ByStatus, nil
}

// AnalyticsOverview fetches the volume time series.
func (c *Client) AnalyticsOverview(ctx context.Context, filter OverviewFilter) (*domain.AnalyticsOverview, error) {
	var resp struct {
		Analytics domain.AnalyticsOverview `json:"analytics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/analytics/overview", filter.values(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Analytics.Periods == nil {
		resp.Analytics.Periods = []domain.AnalyticsPeriod{}
	}
	return &resp.Analytics, nil
}

// Merchants lists merchant accounts. Admin only.
func (c *Client) Merchants(ctx context.Context, filter ListFilter) (*MerchantPage, error) {
	var resp MerchantPage
	if err := c.do(ctx, http.MethodGet, "/api/admin/merchants", filter.Values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMerchant creates a merchant account. Admin only. The gateway answers
// either {"merchant": {...}} or the bare merchant object.
func (c *Client) CreateMerchant(ctx context.Context, m NewMerchant) (*domain.Merchant, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/admin/merchants", nil, m, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &domain.Merchant{Email: m.Email, BusinessName: m.BusinessName}, nil
	}

	var wrapped struct {
		Merchant *domain.Merchant `json:"merchant"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Merchant != nil {
		return wrapped.Merchant, nil
	}

	var bare domain.Merchant
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("failed to decode created merchant: %w", err)
	}
	return &bare, nil
}
