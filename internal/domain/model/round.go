package model

import "github.com/shopspring/decimal"

// PointsPlaces is the number of decimals points and values are kept at.
const PointsPlaces = 2

// RoundPoints rounds x half away from zero to PointsPlaces decimals.
func RoundPoints(x float64) float64 {
	return decimal.NewFromFloat(x).Round(PointsPlaces).InexactFloat64()
}
