package core

import (
	"github.com/shopspring/decimal"
)

// Installment is one row of a loan amortization schedule.
type Installment struct {
	Month     int
	EMI       Money
	Principal Money
	Interest  Money
	Remaining Money
}

// Schedule is a full amortization schedule with its totals.
type Schedule struct {
	Installments   []Installment
	TotalPrincipal Money
	TotalInterest  Money
	TotalAmount    Money
}

// CalculateEMI returns the equated monthly installment for a principal, an
// annual interest rate in percent and a tenure in months, rounded to cents.
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1), r = rate / 1200
//
// A zero rate spreads the principal evenly.
func CalculateEMI(principal Money, annualRate float64, months int) Money {
	if months < 1 {
		return Money{}
	}
	p := decimal.NewFromInt(principal.Cents).Shift(-2)
	if annualRate == 0 {
		return toMoney(p.Div(decimal.NewFromInt(int64(months))))
	}
	r := monthlyRate(annualRate)
	growth := decimal.NewFromInt(1).Add(r).Pow(decimal.NewFromInt(int64(months)))
	factor := r.Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	return toMoney(p.Mul(factor))
}

// monthlyRate converts an annual percentage into a monthly fraction.
func monthlyRate(annualRate float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRate).Div(decimal.NewFromInt(1200))
}

// EMIBreakdown computes the month by month split of each installment into
// interest and principal, with the balance left after each payment.
func EMIBreakdown(principal Money, annualRate float64, months int) Schedule {
	var sched Schedule
	if months < 1 {
		return sched
	}
	emi := decimal.NewFromInt(CalculateEMI(principal, annualRate, months).Cents).Shift(-2)
	r := monthlyRate(annualRate)
	remaining := decimal.NewFromInt(principal.Cents).Shift(-2)

	sched.Installments = make([]Installment, 0, months)
	for m := 1; m <= months; m++ {
		interest := remaining.Mul(r)
		principalPart := emi.Sub(interest)
		remaining = remaining.Sub(principalPart)
		// rounding leaves a few cents on the last installments
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		inst := Installment{
			Month:     m,
			EMI:       toMoney(emi),
			Principal: toMoney(principalPart),
			Interest:  toMoney(interest),
			Remaining: toMoney(remaining),
		}
		sched.Installments = append(sched.Installments, inst)
		sched.TotalInterest.Cents += inst.Interest.Cents
		sched.TotalAmount.Cents += inst.EMI.Cents
	}
	sched.TotalPrincipal = principal
	return sched
}

func toMoney(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}
