package utils

import "math"

// Round2 округляет до двух знаков (денежные суммы, проценты)
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

// RoundTo округляет до decimals знаков после запятой
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
