// Package wheatleyutils contains the model family and pulse width math shared by the wheatley models.
package wheatleyutils

import (
	"go.viam.com/rdk/resource"
)

// WheatleyFamily is the model family for the wheatley module.
var WheatleyFamily = resource.NewModelFamily("viam", "wheatley")

// Servo pulse width defaults, in microseconds.
const (
	DefaultMinUS    = 1000
	DefaultHomeUS   = 1500
	DefaultMaxUS    = 2000
	DefaultStepUS   = 10
	DefaultFreqHz   = 50
	DefaultRotation = 180
)

// AngleToPulseWidth maps an angle in [0, maxRotation] degrees onto [minUS, maxUS].
func AngleToPulseWidth(angle, maxRotation, minUS, maxUS int) int {
	if maxRotation <= 0 {
		return minUS
	}
	return minUS + (maxUS-minUS)*angle/maxRotation
}

// PulseWidthToAngle is the inverse of AngleToPulseWidth, rounded to the nearest degree.
func PulseWidthToAngle(pulseWidth, maxRotation, minUS, maxUS int) int {
	span := maxUS - minUS
	if span <= 0 {
		return 0
	}
	return (maxRotation*(pulseWidth-minUS)*2 + span) / (2 * span)
}

// PulseWidthToDutyCycle converts a pulse width to a duty cycle fraction at the given PWM frequency.
func PulseWidthToDutyCycle(pulseWidth int, freqHz uint) float64 {
	periodUS := 1e6 / float64(freqHz)
	return float64(pulseWidth) / periodUS
}
