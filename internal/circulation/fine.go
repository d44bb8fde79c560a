package circulation

import (
	"time"

	"github.com/shopspring/decimal"
)

var DefaultFinePerDay = decimal.RequireFromString("10.00")

// FinePolicy は延滞罰金の計算
type FinePolicy struct {
	PerDay decimal.Decimal
}

func NewFinePolicy(perDay decimal.Decimal) FinePolicy {
	return FinePolicy{PerDay: perDay}
}

// Calculate: 期限なし・期限内なら 0、それ以外は経過した丸日数 × PerDay
func (p FinePolicy) Calculate(due *time.Time, returnedAt time.Time) decimal.Decimal {
	if due == nil || !returnedAt.After(*due) {
		return decimal.Zero
	}
	days := int64(returnedAt.Sub(*due) / (24 * time.Hour))
	return p.PerDay.Mul(decimal.NewFromInt(days))
}
