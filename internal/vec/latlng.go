package vec

import "math"

// LatLng представляет географическую позицию в градусах.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Add сдвигает позицию на указанное количество градусов
func (p LatLng) Add(dLat, dLng float64) LatLng {
	return LatLng{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}

// Step сдвигает позицию на целое число клеток размером tileDegrees
func (p LatLng) Step(step Vec2, tileDegrees float64) LatLng {
	return p.Add(float64(step.X)*tileDegrees, float64(step.Y)*tileDegrees)
}

// IsValid проверяет, что координаты конечны и лежат в допустимых пределах
func (p LatLng) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
