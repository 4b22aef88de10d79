/**
 * @description
 * This file contains the view services of the dashboard. Each method backs one
 * screen: it gathers the data the screen shows through the gateway client,
 * applies the screen's defaults and form rules, and returns a ready-to-render
 * view model.
 *
 * @notes
 * - A view whose context ends while a fetch is in flight returns the context
 *   error and no data, so a torn-down screen is never updated.
 * - Administrator filters (merchant_id) are only forwarded for admin sessions.
 */
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/joelwasike/globpay-crypto-dash/internal/charts"
	"github.com/joelwasike/globpay-crypto-dash/internal/domain"
	"github.com/joelwasike/globpay-crypto-dash/internal/session"
	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
	"github.com/joelwasike/globpay-crypto-dash/pkg/rabbitmq"
)

// Paging defaults of every list screen.
const (
	DefaultPage           = 1
	DefaultLimit          = 20
	DashboardTransactions = 50
	DefaultGroupBy        = "day"
	analyticsWindow       = 30 * 24 * time.Hour
	dateLayout            = "2006-01-02"
)

// Fallback messages shown when the gateway gives no {error} body.
const (
	MsgLoadDashboard    = "Failed to load dashboard"
	MsgLoadTransactions = "Failed to load transactions"
	MsgLoadDeposits     = "Failed to load deposits"
	MsgLoadWithdrawals  = "Failed to load withdrawals"
	MsgWithdrawFailed   = "Withdrawal failed."
	MsgLoadAnalytics    = "Failed to load analytics"
	MsgLoadProfile      = "Failed to load profile"
	MsgUpdateProfile    = "Failed to update profile."
	MsgUpdatePassword   = "Failed to update password."
	MsgRegenerateKey    = "Failed to regenerate API key."
	MsgLoadMerchants    = "Failed to load merchants"
	MsgCreateMerchant   = "Failed to create merchant"
)

// Gateway is the part of the gateway API the views use.
type Gateway interface {
	Profile(ctx context.Context) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, update gatewayclient.ProfileUpdate) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	RegenerateAPIKey(ctx context.Context) (string, error)
	Summary(ctx context.Context) (*domain.Summary, error)
	Transactions(ctx context.Context, filter gatewayclient.TransactionFilter) (*gatewayclient.TransactionPage, error)
	Deposits(ctx context.Context, filter gatewayclient.ListFilter) (*gatewayclient.DepositPage, error)
	Withdrawals(ctx context.Context, filter gatewayclient.ListFilter) (*gatewayclient.WithdrawalPage, error)
	Withdraw(ctx context.Context, destinationAddress string) (*gatewayclient.WithdrawResult, error)
	AnalyticsByStatus(ctx context.Context) (*domain.StatusBreakdown, error)
	AnalyticsOverview(ctx context.Context, filter gatewayclient.OverviewFilter) (*domain.AnalyticsOverview, error)
	Merchants(ctx context.Context, filter gatewayclient.ListFilter) (*gatewayclient.MerchantPage, error)
	CreateMerchant(ctx context.Context, m gatewayclient.NewMerchant) (*domain.Merchant, error)
}

// Sessions exposes the current identity to the views.
type Sessions interface {
	Current() (session.Identity, bool)
	Revalidate(ctx context.Context) error
}

// EventPublisher receives audit events.
type EventPublisher interface {
	PublishDashboardEvent(ctx context.Context, event rabbitmq.DashboardEvent) error
}

// Service provides the view logic of the dashboard.
type Service struct {
	gateway   Gateway
	sessions  Sessions
	events    EventPublisher
	validator *formValidator
	now       func() time.Time
	location  *time.Location
	logger    zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher publishes audit events for state-changing actions.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone chart buckets are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates the view service.
func NewService(gateway Gateway, sessions Sessions, opts ...Option) *Service {
	s := &Service{
		gateway:   gateway,
		sessions:  sessions,
		validator: newFormValidator(),
		now:       time.Now,
		location:  time.UTC,
		logger:    log.Logger.With().Str("component", "views").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// settle discards v when ctx ended while it was being produced.
func settle[T any](ctx context.Context, v T, err error) (T, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero T
		return zero, ctxErr
	}
	return v, err
}

func settleErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *Service) identity() (session.Identity, bool) {
	if s.sessions == nil {
		return session.Identity{}, false
	}
	return s.sessions.Current()
}

func (s *Service) isAdmin() bool {
	id, ok := s.identity()
	return ok && id.IsAdmin
}

// merchantFilter forwards the merchant filter for administrators only.
func (s *Service) merchantFilter(merchantID string) string {
	if !s.isAdmin() {
		return ""
	}
	return strings.TrimSpace(merchantID)
}

func (s *Service) publish(ctx context.Context, eventType string, detail map[string]string) {
	if s.events == nil {
		return
	}
	id, _ := s.identity()
	event := rabbitmq.NewEvent(eventType, id.MerchantID, id.Email, detail)
	if err := s.events.PublishDashboardEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish dashboard event")
	}
}

func pageOrDefault(page int) int {
	if page <= 0 {
		return DefaultPage
	}
	return page
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// DashboardView is the home screen.
type DashboardView struct {
	Summary          domain.Summary            `json:"summary"`
	Transactions     []domain.ChartTransaction `json:"transactions"`
	SuccessRate      float64                   `json:"success_rate"`
	WeeklySuccessful float64                   `json:"weekly_successful"`
	Weekly           charts.Series             `json:"weekly"`
	Monthly          charts.Series             `json:"monthly"`
	LastMonths       charts.Series             `json:"last_months"`
	WeeklyVolume     charts.Bars               `json:"weekly_volume"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// Dashboard loads the summary and the latest transactions concurrently and
// derives the chart series from them.
func (s *Service) Dashboard(ctx context.Context) (*DashboardView, error) {
	var (
		summary *domain.Summary
		page    *gatewayclient.TransactionPage
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		res, err := s.gateway.Summary(ctx)
		summary = res
		return err
	})
	p.Go(func(ctx context.Context) error {
		res, err := s.gateway.Transactions(ctx, gatewayclient.TransactionFilter{
			ListFilter: gatewayclient.ListFilter{Page: 1, Limit: DashboardTransactions},
		})
		page = res
		return err
	})
	if err := p.Wait(); err != nil {
		return settle[*DashboardView](ctx, nil, err)
	}

	now := s.now().In(s.location)
	rows := domain.ToChartTransactions(page.Transactions)
	view := &DashboardView{
		Summary:          *summary,
		Transactions:     rows,
		SuccessRate:      charts.SuccessRate(summary.CompletedTransactions, summary.TotalTransactions),
		WeeklySuccessful: charts.SuccessfulSince(rows, now.Add(-7*24*time.Hour)),
		Weekly:           charts.Weekly(rows, now),
		Monthly:          charts.Monthly(rows, now),
		LastMonths:       charts.LastMonths(rows, now, charts.DefaultLastMonths),
		WeeklyVolume:     charts.WeeklySuccessfulVolume(rows, now),
		GeneratedAt:      now,
	}
	return settle(ctx, view, nil)
}

// TransactionQuery holds the transaction screen filters.
type TransactionQuery struct {
	Page       int    `validate:"gte=0"`
	Limit      int    `validate:"gte=0,lte=100"`
	Status     string `validate:"omitempty,oneof=all completed pending failed"`
	FromDate   string `validate:"omitempty,datetime=2006-01-02"`
	ToDate     string `validate:"omitempty,datetime=2006-01-02"`
	DepositID  string
	MerchantID string
}

// TransactionsView is one page of the transactions screen.
type TransactionsView struct {
	Transactions []domain.APITransaction  `json:"transactions"`
	Rows         []domain.ChartTransaction `json:"rows"`
	Pagination   domain.Pagination         `json:"pagination"`
}

// Transactions lists transactions. Status "all" means no status filter.
func (s *Service) Transactions(ctx context.Context, q TransactionQuery) (*TransactionsView, error) {
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
	q.FromDate = strings.TrimSpace(q.FromDate)
	q.ToDate = strings.TrimSpace(q.ToDate)
	if err := s.validator.Validate(q); err != nil {
		return nil, err
	}

	filter := gatewayclient.TransactionFilter{
		ListFilter: gatewayclient.ListFilter{
			Page:       pageOrDefault(q.Page),
			Limit:      limitOrDefault(q.Limit),
			MerchantID: s.merchantFilter(q.MerchantID),
		},
		FromDate:  q.FromDate,
		ToDate:    q.ToDate,
		DepositID: strings.TrimSpace(q.DepositID),
	}
	if q.Status != "all" {
		filter.Status = q.Status
	}

	page, err := s.gateway.Transactions(ctx, filter)
	if err != nil {
		return settle[*TransactionsView](ctx, nil, err)
	}

	txs := page.Transactions
	if txs == nil {
		txs = []domain.APITransaction{}
	}
	view := &TransactionsView{
		Transactions: txs,
		Rows:         domain.ToChartTransactions(txs),
		Pagination:   page.Pagination.Normalized(),
	}
	return settle(ctx, view, nil)
}

// ListQuery holds the filters of the deposit, withdrawal and merchant screens.
type ListQuery struct {
	Page       int
	Limit      int
	MerchantID string
}

func (s *Service) listFilter(q ListQuery) gatewayclient.ListFilter {
	return gatewayclient.ListFilter{
		Page:       pageOrDefault(q.Page),
		Limit:      limitOrDefault(q.Limit),
		MerchantID: s.merchantFilter(q.MerchantID),
	}
}

// DepositsView is one page of the deposits screen.
type DepositsView struct {
	Deposits   []domain.Deposit  `json:"deposits"`
	Pagination domain.Pagination `json:"pagination"`
}

// Deposits lists deposits.
func (s *Service) Deposits(ctx context.Context, q ListQuery) (*DepositsView, error) {
	page, err := s.gateway.Deposits(ctx, s.listFilter(q))
	if err != nil {
		return settle[*DepositsView](ctx, nil, err)
	}
	deposits := page.Deposits
	if deposits == nil {
		deposits = []domain.Deposit{}
	}
	return settle(ctx, &DepositsView{Deposits: deposits, Pagination: page.Pagination.Normalized()}, nil)
}

// WithdrawalsView is one page of the withdrawals screen.
type WithdrawalsView struct {
	Withdrawals []domain.Withdrawal `json:"withdrawals"`
	Pagination  domain.Pagination   `json:"pagination"`
}

// Withdrawals lists withdrawals.
func (s *Service) Withdrawals(ctx context.Context, q ListQuery) (*WithdrawalsView, error) {
	page, err := s.gateway.Withdrawals(ctx, s.listFilter(q))
	if err != nil {
		return settle[*WithdrawalsView](ctx, nil, err)
	}
	withdrawals := page.Withdrawals
	if withdrawals == nil {
		withdrawals = []domain.Withdrawal{}
	}
	return settle(ctx, &WithdrawalsView{Withdrawals: withdrawals, Pagination: page.Pagination.Normalized()}, nil)
}

// WithdrawForm is the withdraw form.
type WithdrawForm struct {
	DestinationAddress string `validate:"required"`
}

// Withdraw sends the available balance to the trimmed destination address.
func (s *Service) Withdraw(ctx context.Context, destinationAddress string) (*gatewayclient.WithdrawResult, error) {
	form := WithdrawForm{DestinationAddress: strings.TrimSpace(destinationAddress)}
	if err := s.validator.Validate(form); err != nil {
		return nil, err
	}

	res, err := s.gateway.Withdraw(ctx, form.DestinationAddress)
	if err != nil {
		return settle[*gatewayclient.WithdrawResult](ctx, nil, err)
	}
	s.publish(ctx, rabbitmq.EventWithdrawal, map[string]string{"destination_address": form.DestinationAddress})
	return settle(ctx, res, nil)
}

// AnalyticsQuery holds the analytics screen filters.
type AnalyticsQuery struct {
	FromDate string `validate:"omitempty,datetime=2006-01-02"`
	ToDate   string `validate:"omitempty,datetime=2006-01-02"`
	GroupBy  string `validate:"omitempty,oneof=day week month"`
}

// AnalyticsView is the analytics screen.
type AnalyticsView struct {
	ByStatus          domain.StatusBreakdown   `json:"by_status"`
	Periods           []domain.AnalyticsPeriod `json:"periods"`
	FromDate          string                   `json:"from_date"`
	ToDate            string                   `json:"to_date"`
	GroupBy           string                   `json:"group_by"`
	TotalTransactions int                      `json:"total_transactions"`
	TotalVolume       float64                  `json:"total_volume"`
	SuccessRate       float64                  `json:"success_rate"`
}

// Analytics loads the status breakdown and the volume series concurrently.
// The window defaults to the last 30 days grouped by day.
func (s *Service) Analytics(ctx context.Context, q AnalyticsQuery) (*AnalyticsView, error) {
	now := s.now().UTC()
	q.FromDate = strings.TrimSpace(q.FromDate)
	q.ToDate = strings.TrimSpace(q.ToDate)
	q.GroupBy = strings.ToLower(strings.TrimSpace(q.GroupBy))
	if q.FromDate == "" {
		q.FromDate = now.Add(-analyticsWindow).Format(dateLayout)
	}
	if q.ToDate == "" {
		q.ToDate = now.Format(dateLayout)
	}
	if q.GroupBy == "" {
		q.GroupBy = DefaultGroupBy
	}
	if err := s.validator.Validate(q); err != nil {
		return nil, err
	}

	var (
		byStatus *domain.StatusBreakdown
		overview *domain.AnalyticsOverview
	)
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		res, err := s.gateway.AnalyticsByStatus(ctx)
		byStatus = res
		return err
	})
	p.Go(func(ctx context.Context) error {
		res, err := s.gateway.AnalyticsOverview(ctx, gatewayclient.OverviewFilter{
			FromDate: q.FromDate,
			ToDate:   q.ToDate,
			GroupBy:  q.GroupBy,
		})
		overview = res
		return err
	})
	if err := p.Wait(); err != nil {
		return settle[*AnalyticsView](ctx, nil, err)
	}

	volume := decimal.Zero
	for _, period := range overview.Periods {
		volume = volume.Add(period.TotalAmount.Decimal())
	}

	view := &AnalyticsView{
		ByStatus:          *byStatus,
		Periods:           overview.Periods,
		FromDate:          q.FromDate,
		ToDate:            q.ToDate,
		GroupBy:           q.GroupBy,
		TotalTransactions: byStatus.Total(),
		TotalVolume:       volume.InexactFloat64(),
		SuccessRate:       charts.SuccessRate(byStatus.Completed, byStatus.Total()),
	}
	return settle(ctx, view, nil)
}

// Profile loads the merchant profile.
func (s *Service) Profile(ctx context.Context) (*domain.Profile, error) {
	profile, err := s.gateway.Profile(ctx)
	return settle(ctx, profile, err)
}

// ProfileForm is the profile form. Empty fields are left unchanged.
type ProfileForm struct {
	BusinessName  string `json:"business_name"`
	SolanaAddress string `json:"solana_address"`
}

// UpdateProfile saves the profile form and refreshes the session identity so
// the new business name shows up in the header.
func (s *Service) UpdateProfile(ctx context.Context, form ProfileForm) error {
	form.BusinessName = strings.TrimSpace(form.BusinessName)
	form.SolanaAddress = strings.TrimSpace(form.SolanaAddress)
	if err := s.validator.Validate(form); err != nil {
		return err
	}

	err := s.gateway.UpdateProfile(ctx, gatewayclient.ProfileUpdate{
		BusinessName:  form.BusinessName,
		SolanaAddress: form.SolanaAddress,
	})
	if err != nil {
		return settleErr(ctx, err)
	}

	if s.sessions != nil {
		if err := s.sessions.Revalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to refresh session after profile update")
		}
	}
	s.publish(ctx, rabbitmq.EventProfileUpdated, nil)
	return ctx.Err()
}

// PasswordForm is the change-password form.
type PasswordForm struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=NewPassword"`
}

// ChangePassword checks the form locally before calling the gateway.
func (s *Service) ChangePassword(ctx context.Context, form PasswordForm) error {
	if err := s.validator.Validate(form); err != nil {
		return err
	}
	if err := s.gateway.ChangePassword(ctx, form.CurrentPassword, form.NewPassword); err != nil {
		return settleErr(ctx, err)
	}
	s.publish(ctx, rabbitmq.EventPasswordChanged, nil)
	return ctx.Err()
}

// RegenerateAPIKey issues a new API key and returns it once. The key the
// session authenticates with is not replaced.
func (s *Service) RegenerateAPIKey(ctx context.Context) (string, error) {
	key, err := s.gateway.RegenerateAPIKey(ctx)
	if err != nil {
		return settle(ctx, "", err)
	}
	s.publish(ctx, rabbitmq.EventAPIKeyRegenerated, nil)
	return settle(ctx, key, nil)
}

// MerchantsView is one page of the merchants screen.
type MerchantsView struct {
	Merchants  []domain.Merchant `json:"merchants"`
	Pagination domain.Pagination `json:"pagination"`
}

// Merchants lists merchant accounts. Administrators only.
func (s *Service) Merchants(ctx context.Context, q ListQuery) (*MerchantsView, error) {
	if !s.isAdmin() {
		return nil, ErrAdminOnly
	}
	page, err := s.gateway.Merchants(ctx, gatewayclient.ListFilter{
		Page:  pageOrDefault(q.Page),
		Limit: limitOrDefault(q.Limit),
	})
	if err != nil {
		return settle[*MerchantsView](ctx, nil, err)
	}
	merchants := page.Merchants
	if merchants == nil {
		merchants = []domain.Merchant{}
	}
	return settle(ctx, &MerchantsView{Merchants: merchants, Pagination: page.Pagination.Normalized()}, nil)
}

// MerchantForm is the create-merchant form.
type MerchantForm struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	BusinessName string `json:"business_name"`
}

// CreateMerchant creates a merchant account. Administrators only.
func (s *Service) CreateMerchant(ctx context.Context, form MerchantForm) (*domain.Merchant, error) {
	if !s.isAdmin() {
		return nil, ErrAdminOnly
	}
	form.Email = strings.TrimSpace(form.Email)
	form.BusinessName = strings.TrimSpace(form.BusinessName)
	if err := s.validator.Validate(form); err != nil {
		return nil, err
	}

	merchant, err := s.gateway.CreateMerchant(ctx, gatewayclient.NewMerchant{
		Email:        form.Email,
		Password:     form.Password,
		BusinessName: form.BusinessName,
	})
	if err != nil {
		return settle[*domain.Merchant](ctx, nil, err)
	}
	s.publish(ctx, rabbitmq.EventMerchantCreated, map[string]string{
		"created_email": merchant.Email,
		"created_id":    merchant.ID,
	})
	return settle(ctx, merchant, nil)
}

// Identity returns the logged-in merchant or ErrNoSession.
func (s *Service) Identity() (session.Identity, error) {
	id, ok := s.identity()
	if !ok {
		return session.Identity{}, fmt.Errorf("views: %w", ErrNoSession)
	}
	return id, nil
}
