/**
 * @description
 * This file defines the domain models the dashboard exchanges with the Solana
 * gateway API, and the display models consumed by chart and table views.
 *
 * @notes
 * - Gateway amounts decode into Amount, which tolerates numeric strings and null.
 *   Display records carry plain float64 values. Aggregation happens in
 *   internal/charts with decimal arithmetic.
 */

package domain

// Transaction statuses as reported by the gateway API.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// Display statuses used by chart and table views.
const (
	DisplaySuccess = "SUCCESS"
	DisplayPending = "PENDING"
	DisplayFailed  = "FAILED"
)

// DefaultAsset is assumed whenever the gateway omits the asset of a transaction.
const DefaultAsset = "USDT"

// APITransaction is a transaction as returned by /api/dashboard/transactions.
type APITransaction struct {
	ID                string `json:"id"`
	MerchantID        string `json:"merchant_id,omitempty"`
	MerchantEmail     string `json:"merchant_email,omitempty"`
	Amount            Amount `json:"amount"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	DepositID         string `json:"deposit_id,omitempty"`
	MerchantDepositID string `json:"merchant_deposit_id,omitempty"`
	Asset             string `json:"asset,omitempty"`
	TxID              string `json:"tx_id,omitempty"`
	TxSignature       string `json:"tx_signature,omitempty"`
}

// ChartTransaction is the normalized display shape produced by ToChartTransaction.
type ChartTransaction struct {
	ID                string  `json:"id"`
	Amount            float64 `json:"amount"`
	TransactionStatus string  `json:"transaction_status"`
	DateAdded         int64   `json:"date_added"`
	ExternalID        string  `json:"external_id"`
	Currency          string  `json:"currency"`
	SourceOfFunds     string  `json:"source_of_funds"`
}

// AsAPITransaction maps a display record back onto the API shape. The status is
// left empty because the display shape does not carry the gateway status.
func (c ChartTransaction) AsAPITransaction() APITransaction {
	return APITransaction{
		ID:                c.ID,
		Amount:            Amount(c.Amount),
		MerchantDepositID: c.ExternalID,
		Asset:             c.Currency,
	}
}

// Deposit is a merchant deposit address/session as listed by /api/dashboard/deposits.
type Deposit struct {
	ID                string `json:"id"`
	DepositID         string `json:"deposit_id,omitempty"`
	MerchantID        string `json:"merchant_id,omitempty"`
	MerchantDepositID string `json:"merchant_deposit_id,omitempty"`
	Address           string `json:"address,omitempty"`
	Asset             string `json:"asset,omitempty"`
	ExpectedAmount    Amount `json:"expected_amount"`
	ReceivedAmount    Amount `json:"received_amount"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
}

// Withdrawal is a payout of merchant balance to an external address. The
// totals are the merchant's running withdrawal counters at the time of the row.
type Withdrawal struct {
	ID                    string `json:"id"`
	MerchantID            string `json:"merchant_id,omitempty"`
	Amount                Amount `json:"amount"`
	Asset                 string `json:"asset,omitempty"`
	DestinationAddress    string `json:"destination_address"`
	Status                string `json:"status"`
	TotalWithdrawn        Amount `json:"total_withdrawn"`
	SuccessfulWithdrawals int    `json:"successful_withdrawals"`
	FailedWithdrawals     int    `json:"failed_withdrawals"`
	TxSignature           string `json:"tx_signature,omitempty"`
	CreatedAt             string `json:"created_at"`
}

// Pagination is the {total, total_pages} envelope returned by paginated endpoints.
type Pagination struct {
	Page       int `json:"page,omitempty"`
	Limit      int `json:"limit,omitempty"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Normalized applies the defaults the dashboard has always used when the
// envelope is missing: no rows, a single page.
func (p Pagination) Normalized() Pagination {
	if p.Total < 0 {
		p.Total = 0
	}
	if p.TotalPages <= 0 {
		p.TotalPages = 1
	}
	return p
}
