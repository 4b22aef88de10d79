/**
 * @description
 * Package charts buckets display-shaped transactions into the series drawn by
 * the dashboard cards: the weekly and yearly income charts, the last-months
 * report and the weekly successful volume bars.
 *
 * @notes
 * - Every function takes the reference time explicitly. Buckets are computed in
 *   now's location, so callers control the timezone.
 * - Amounts are summed with shopspring/decimal and converted back to float64 only
 *   for the response.
 */
package charts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joelwasike/globpay-crypto-dash/internal/domain"
)

// Week is the day-of-week label order, Monday first.
var Week = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Months are the calendar month labels.
var Months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// DefaultLastMonths is the window of the report chart.
const DefaultLastMonths = 7

// Series is a labelled count/amount series.
type Series struct {
	Labels  []string  `json:"labels"`
	Counts  []int     `json:"counts"`
	Amounts []float64 `json:"amounts,omitempty"`
}

// Bars is a labelled series of whole-number bar heights.
type Bars struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// IsSuccessful reports whether a display status counts towards successful volume.
func IsSuccessful(status string) bool {
	switch status {
	case domain.DisplaySuccess, "COMPLETED", "COMPLETE":
		return true
	}
	return false
}

func addedAt(t domain.ChartTransaction, loc *time.Location) time.Time {
	return time.Unix(t.DateAdded, 0).In(loc)
}

// weekdayIndex maps Monday to 0 and Sunday to 6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func inLastWeek(at, now time.Time) bool {
	return !at.Before(now.Add(-7*24*time.Hour)) && !at.After(now)
}

func amountsOf(sums []decimal.Decimal) []float64 {
	out := make([]float64, len(sums))
	for i, s := range sums {
		out[i] = s.InexactFloat64()
	}
	return out
}

func zeroSums(n int) []decimal.Decimal {
	sums := make([]decimal.Decimal, n)
	for i := range sums {
		sums[i] = decimal.Zero
	}
	return sums
}

func copyLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// Weekly counts transactions of the seven days up to now per weekday.
func Weekly(txs []domain.ChartTransaction, now time.Time) Series {
	counts := make([]int, 7)
	sums := zeroSums(7)

	for _, t := range txs {
		at := addedAt(t, now.Location())
		if !inLastWeek(at, now) {
			continue
		}
		day := weekdayIndex(at)
		counts[day]++
		sums[day] = sums[day].Add(decimal.NewFromFloat(t.Amount))
	}

	return Series{Labels: copyLabels(Week), Counts: counts, Amounts: amountsOf(sums)}
}

// Monthly counts transactions of now's calendar year per month.
func Monthly(txs []domain.ChartTransaction, now time.Time) Series {
	counts := make([]int, 12)
	sums := zeroSums(12)

	for _, t := range txs {
		at := addedAt(t, now.Location())
		if at.Year() != now.Year() {
			continue
		}
		month := int(at.Month()) - 1
		counts[month]++
		sums[month] = sums[month].Add(decimal.NewFromFloat(t.Amount))
	}

	return Series{Labels: copyLabels(Months), Counts: counts, Amounts: amountsOf(sums)}
}

// LastMonths counts transactions of the last n calendar months, current month
// included, oldest first.
func LastMonths(txs []domain.ChartTransaction, now time.Time, n int) Series {
	if n <= 0 {
		return Series{Labels: []string{}, Counts: []int{}}
	}

	counts := make([]int, n)
	labels := make([]string, n)
	current := int(now.Month()) - 1
	for i := 0; i < n; i++ {
		monthsAgo := n - 1 - i
		labels[i] = Months[((current-monthsAgo)%12+12)%12]
	}

	for _, t := range txs {
		at := addedAt(t, now.Location())
		monthsAgo := (now.Year()-at.Year())*12 + (current - (int(at.Month()) - 1))
		if monthsAgo < 0 || monthsAgo >= n {
			continue
		}
		counts[n-1-monthsAgo]++
	}

	return Series{Labels: labels, Counts: counts}
}

// WeeklySuccessfulVolume sums successful amounts of the last seven days per
// weekday, scaled down by 100 and rounded. Days after today's weekday are 0.
func WeeklySuccessfulVolume(txs []domain.ChartTransaction, now time.Time) Bars {
	sums := zeroSums(7)
	for _, t := range txs {
		if !IsSuccessful(t.TransactionStatus) {
			continue
		}
		at := addedAt(t, now.Location())
		if !inLastWeek(at, now) {
			continue
		}
		day := weekdayIndex(at)
		sums[day] = sums[day].Add(decimal.NewFromFloat(t.Amount).Div(decimal.NewFromInt(100)))
	}

	today := weekdayIndex(now)
	values := make([]int64, 7)
	for day := range values {
		if day > today {
			continue
		}
		values[day] = sums[day].Round(0).IntPart()
	}
	return Bars{Labels: copyLabels(Week), Values: values}
}

// SuccessfulSince sums the successful amounts added at or after since.
func SuccessfulSince(txs []domain.ChartTransaction, since time.Time) float64 {
	total := decimal.Zero
	for _, t := range txs {
		if !IsSuccessful(t.TransactionStatus) {
			continue
		}
		if time.Unix(t.DateAdded, 0).Before(since) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(t.Amount))
	}
	return total.InexactFloat64()
}

// SuccessRate is completed/total as a percentage with one decimal, 0 when total is 0.
func SuccessRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(completed)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		InexactFloat64()
}

// StartOfWeek returns Monday 00:00 of now's week in now's location.
func StartOfWeek(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -weekdayIndex(now))
}
