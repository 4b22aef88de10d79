package charts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joelwasike/globpay-crypto-dash/internal/domain"
)

// Wednesday.
var refNow = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

func tx(id, status string, amount float64, at time.Time) domain.ChartTransaction {
	return domain.ChartTransaction{ID: id, TransactionStatus: status, Amount: amount, DateAdded: at.Unix(), Currency: domain.DefaultAsset}
}

func fixture() []domain.ChartTransaction {
	return []domain.ChartTransaction{
		tx("mon", domain.DisplaySuccess, 250, time.Date(2024, time.May, 13, 10, 0, 0, 0, time.UTC)),
		tx("wed", domain.DisplayPending, 100, time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)),
		tx("thu", "COMPLETED", 1000, time.Date(2024, time.May, 9, 12, 30, 0, 0, time.UTC)),
		tx("jan", domain.DisplayFailed, 40, time.Date(2024, time.January, 20, 8, 0, 0, 0, time.UTC)),
		tx("dec", domain.DisplaySuccess, 10, time.Date(2023, time.December, 5, 8, 0, 0, 0, time.UTC)),
		tx("future", domain.DisplaySuccess, 5, time.Date(2024, time.May, 16, 8, 0, 0, 0, time.UTC)),
	}
}

func TestWeekly(t *testing.T) {
	s := Weekly(fixture(), refNow)

	assert.Equal(t, Week, s.Labels)
	assert.Equal(t, []int{1, 0, 1, 1, 0, 0, 0}, s.Counts)
	assert.Equal(t, []float64{250, 0, 100, 1000, 0, 0, 0}, s.Amounts)
}

func TestMonthly(t *testing.T) {
	s := Monthly(fixture(), refNow)

	assert.Equal(t, Months, s.Labels)
	assert.Equal(t, 1, s.Counts[0])
	assert.Equal(t, 4, s.Counts[4])
	assert.InDelta(t, 1355.0, s.Amounts[4], 1e-9)
	assert.Zero(t, s.Counts[11])
}

func TestLastMonths(t *testing.T) {
	s := LastMonths(fixture(), refNow, DefaultLastMonths)

	assert.Equal(t, []string{"Nov", "Dec", "Jan", "Feb", "Mar", "Apr", "May"}, s.Labels)
	assert.Equal(t, []int{0, 1, 1, 0, 0, 0, 4}, s.Counts)
}

func TestLastMonths_EmptyWindow(t *testing.T) {
	s := LastMonths(fixture(), refNow, 0)
	assert.Empty(t, s.Labels)
	assert.Empty(t, s.Counts)
}

func TestWeeklySuccessfulVolume(t *testing.T) {
	bars := WeeklySuccessfulVolume(fixture(), refNow)

	// Thursday's completed transaction is last week's, so it falls on a day
	// that has not happened yet this week and is hidden.
	assert.Equal(t, []int64{3, 0, 0, 0, 0, 0, 0}, bars.Values)
	assert.Equal(t, Week, bars.Labels)
}

func TestSuccessfulSince(t *testing.T) {
	assert.InDelta(t, 255.0, SuccessfulSince(fixture(), StartOfWeek(refNow)), 1e-9)
	assert.InDelta(t, 1265.0, SuccessfulSince(fixture(), time.Time{}), 1e-9)
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		completed, total int
		want             float64
	}{
		{0, 0, 0},
		{2, 3, 66.7},
		{1, 8, 12.5},
		{5, 5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuccessRate(tt.completed, tt.total))
	}
}

func TestStartOfWeek(t *testing.T) {
	assert.Equal(t, time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC), StartOfWeek(refNow))

	sunday := time.Date(2024, time.May, 19, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC), StartOfWeek(sunday))
}

func TestIsSuccessful(t *testing.T) {
	for _, s := range []string{"SUCCESS", "COMPLETED", "COMPLETE"} {
		assert.True(t, IsSuccessful(s), s)
	}
	for _, s := range []string{"PENDING", "FAILED", "", "success"} {
		assert.False(t, IsSuccessful(s), s)
	}
}
