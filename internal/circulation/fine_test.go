package circulation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFinePolicy_Calculate(t *testing.T) {
	p := NewFinePolicy(DefaultFinePerDay)
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		due      *time.Time
		returned time.Time
		want     string
	}{
		{"no due date", nil, due.AddDate(1, 0, 0), "0"},
		{"before due", &due, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), "0"},
		{"on due", &due, due, "0"},
		{"partial day", &due, due.Add(23 * time.Hour), "0"},
		{"three days late", &due, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), "30"},
		{"three and a half days late", &due, due.Add(84 * time.Hour), "30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Calculate(tc.due, tc.returned)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestFinePolicy_CustomRate(t *testing.T) {
	p := NewFinePolicy(decimal.RequireFromString("2.50"))
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := p.Calculate(&due, due.AddDate(0, 0, 4))
	assert.Equal(t, "10.00", got.StringFixed(2))
}

func TestFinePolicy_Monotonic(t *testing.T) {
	p := NewFinePolicy(DefaultFinePerDay)
	rng := rand.New(rand.NewSource(42))
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		a := due.Add(time.Duration(rng.Int63n(int64(90*24*time.Hour))) - 10*24*time.Hour)
		b := a.Add(time.Duration(rng.Int63n(int64(30 * 24 * time.Hour))))
		fa, fb := p.Calculate(&due, a), p.Calculate(&due, b)
		assert.True(t, fa.LessThanOrEqual(fb), "fine(%s)=%s > fine(%s)=%s", a, fa, b, fb)
		assert.False(t, fa.IsNegative())
	}
}
