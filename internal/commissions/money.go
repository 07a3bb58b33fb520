package commissions

import "github.com/shopspring/decimal"

const moneyPlaces = 2

// commissionAmount applies the flat per-level rate and rounds half-up to cents.
func commissionAmount(purchase, rate decimal.Decimal) decimal.Decimal {
	return purchase.Mul(rate).Round(moneyPlaces)
}

func roundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(moneyPlaces)
}

func sumAmounts[T any](rows []T, amount func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(amount(row))
	}
	return roundMoney(total)
}
