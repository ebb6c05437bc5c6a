package rental

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

var (
	// ErrInvalidLoanPeriod is returned when the loan period is not positive.
	ErrInvalidLoanPeriod = errors.New("loan period must be positive")

	// ErrNegativeDailyFee is returned when the late fee per day is negative.
	ErrNegativeDailyFee = errors.New("daily late fee must not be negative")
)

// LateFeePolicy decides when a rental is due and what a late return costs.
type LateFeePolicy struct {
	LoanPeriod time.Duration
	DailyFee   decimal.Decimal
}

// DefaultLateFeePolicy is a two week loan at 0.50 per started late day.
func DefaultLateFeePolicy() LateFeePolicy {
	return LateFeePolicy{
		LoanPeriod: 14 * day,
		DailyFee:   decimal.RequireFromString("0.50"),
	}
}

// Validate checks the policy bounds.
func (p LateFeePolicy) Validate() error {
	if p.LoanPeriod <= 0 {
		return ErrInvalidLoanPeriod
	}
	if p.DailyFee.IsNegative() {
		return ErrNegativeDailyFee
	}
	return nil
}

// DueDate returns when a rental started at rentedAt must be back.
func (p LateFeePolicy) DueDate(rentedAt time.Time) time.Time {
	return rentedAt.Add(p.LoanPeriod)
}

// DaysLate counts started days past due. Zero when returned on time.
func (p LateFeePolicy) DaysLate(due, returnedAt time.Time) int64 {
	late := returnedAt.Sub(due)
	if late <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(late) / float64(day)))
}

// Fee returns DailyFee times the started days late, rounded to cents.
func (p LateFeePolicy) Fee(due, returnedAt time.Time) decimal.Decimal {
	days := p.DaysLate(due, returnedAt)
	if days == 0 {
		return decimal.Zero
	}
	return p.DailyFee.Mul(decimal.NewFromInt(days)).Round(2)
}
