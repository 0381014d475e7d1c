package chassis

import "math"

const (
	WheelDiameterM float64 = 0.1524
	WheelCircumM           = WheelDiameterM * math.Pi

	// Distance between the centres of the left and right wheel contact patches.
	WheelSeparationM = 0.703

	EncoderPulsesPerRev = 360

	// Highest ground speed we ask the drive channels to track.
	MaxVelocityMPerS = 3.0
)

var MetresPerPulse = WheelCircumM / EncoderPulsesPerRev
