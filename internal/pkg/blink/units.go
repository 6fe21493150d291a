package blink

import "math"

// FahrenheitToCelsius converts to Celsius rounded to one decimal place
func FahrenheitToCelsius(f float64) float64 {
	return math.Round((f-32)/1.8*10) / 10
}

// BatteryPercent maps a camera battery voltage reading, where 180 is a
// full pair of cells, to a percentage
func BatteryPercent(voltage int64) int {
	return int(math.Round(float64(voltage) / 180 * 100))
}
