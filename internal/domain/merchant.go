package domain

// Profile is the authenticated merchant as returned by GET /api/dashboard/profile.
type Profile struct {
	ID            string `json:"id"`
	MerchantID    string `json:"merchant_id"`
	Email         string `json:"email"`
	BusinessName  string `json:"business_name"`
	SolanaAddress string `json:"solana_address,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	APIKey        string `json:"api_key,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// LoginResponse is the body of a successful POST /api/merchants/login.
type LoginResponse struct {
	APIKey       string `json:"api_key"`
	MerchantID   string `json:"merchant_id"`
	Email        string `json:"email"`
	BusinessName string `json:"business_name"`
	IsAdmin      bool   `json:"is_admin"`
}

// Merchant is a tenant account as listed by the admin endpoints.
type Merchant struct {
	ID            string `json:"id"`
	MerchantID    string `json:"merchant_id,omitempty"`
	Email         string `json:"email"`
	BusinessName  string `json:"business_name"`
	SolanaAddress string `json:"solana_address,omitempty"`
	USDTBalance   Amount `json:"usdt_balance"`
	IsAdmin       bool   `json:"is_admin"`
	IsActive      bool   `json:"is_active"`
	APIKey        string `json:"api_key,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// Summary holds the headline counters of the dashboard home page.
type Summary struct {
	TotalTransactions     int     `json:"total_transactions"`
	CompletedTransactions int     `json:"completed_transactions"`
	PendingTransactions   int     `json:"pending_transactions"`
	FailedTransactions    int     `json:"failed_transactions"`
	TotalAmountCollected  Amount `json:"total_amount_collected"`
	TotalUSDTBalance      Amount `json:"total_usdt_balance"`
}

// StatusBreakdown counts transactions per gateway status.
type StatusBreakdown struct {
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// Total is the sum of all buckets.
func (b StatusBreakdown) Total() int {
	return b.Completed + b.Pending + b.Failed
}

// AnalyticsPeriod is one bucket of the analytics overview.
type AnalyticsPeriod struct {
	Date             string `json:"date"`
	TotalAmount      Amount `json:"total_amount"`
	TransactionCount int    `json:"transaction_count"`
}

// AnalyticsOverview is the time series returned by /api/dashboard/analytics/overview.
type AnalyticsOverview struct {
	Periods []AnalyticsPeriod `json:"periods"`
}
