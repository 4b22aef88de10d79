package domain

import (
	"strings"
	"time"
)

var displayStatuses = map[string]string{
	StatusCompleted: DisplaySuccess,
	StatusPending:   DisplayPending,
	StatusFailed:    DisplayFailed,
}

// createdAtLayouts lists the timestamp formats seen from the gateway, most common first.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToChartTransaction converts a gateway transaction into the display shape used
// by chart and table views. A nil input is passed through as nil.
func ToChartTransaction(t *APITransaction) *ChartTransaction {
	if t == nil {
		return nil
	}

	status, ok := displayStatuses[t.Status]
	if !ok {
		status = strings.ToUpper(t.Status)
	}

	externalID := t.MerchantDepositID
	if externalID == "" {
		externalID = t.DepositID
	}

	asset := t.Asset
	if asset == "" {
		asset = DefaultAsset
	}

	return &ChartTransaction{
		ID:                t.ID,
		Amount:            t.Amount.Float64(),
		TransactionStatus: status,
		DateAdded:         unixSeconds(t.CreatedAt),
		ExternalID:        externalID,
		Currency:          asset,
		SourceOfFunds:     asset,
	}
}

// ToChartTransactions converts a list in order. The result always has the same
// length as the input; a nil list yields an empty one.
func ToChartTransactions(list []APITransaction) []ChartTransaction {
	out := make([]ChartTransaction, 0, len(list))
	for i := range list {
		out = append(out, *ToChartTransaction(&list[i]))
	}
	return out
}

// unixSeconds returns 0 for empty or unparseable timestamps.
func unixSeconds(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Unix()
		}
	}
	return 0
}
