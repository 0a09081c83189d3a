package shared

import "math"

// RoundMoney rounds an amount to two decimal places, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// MoneyEqual compares two amounts at cent precision.
func MoneyEqual(a, b float64) bool {
	return math.Abs(RoundMoney(a)-RoundMoney(b)) < 0.005
}
