package drive

import (
	"math"

	"github.com/team6063/jeff/pkg/angle"
	"github.com/team6063/jeff/pkg/pose"
)

// BearingFunc turns a target offset in the robot's frame into a steering
// angle.
type BearingFunc func(localX, localY float64) float64

// AtanBearing is atan(localX/localY).  It ignores which half plane the target
// is in, so a target behind the robot steers as if it were ahead.  When
// localY is zero the result is ±π/2 following the sign of localX, or 0 when
// both are zero.
func AtanBearing(localX, localY float64) float64 {
	if localY == 0 {
		switch {
		case localX > 0:
			return math.Pi / 2
		case localX < 0:
			return -math.Pi / 2
		default:
			return 0
		}
	}
	return math.Atan(localX / localY)
}

// Atan2Bearing resolves the full circle.
func Atan2Bearing(localX, localY float64) float64 {
	return math.Atan2(localX, localY)
}

func BearingByName(name string) (BearingFunc, bool) {
	switch name {
	case "", "atan":
		return AtanBearing, true
	case "atan2":
		return Atan2Bearing, true
	}
	return nil, false
}

// Localise rotates the offset from current to target into the robot's frame.
// localY is the distance ahead and localX the distance to the right.
func Localise(current, target pose.Pose) (localX, localY float64) {
	dist := current.Offset(target)
	h := angle.Rem2Pi(current.Heading)
	sin, cos := math.Sincos(h)
	localX = dist.X*cos - dist.Y*sin
	localY = dist.X*sin + dist.Y*cos
	return
}

// Steer returns the wheel speeds that turn toward target while driving
// forward at full speed.
func Steer(current, target pose.Pose, angleFactor float64, bearing BearingFunc) (left, right float64) {
	localX, localY := Localise(current, target)
	a := angle.FromFloat(bearing(localX, localY)).Float()
	left = 1 + a*angleFactor
	right = 1 - a*angleFactor
	return NormaliseAbs(left, right)
}

// NormaliseAbs scales both speeds down so that the larger magnitude is 1.
func NormaliseAbs(left, right float64) (float64, float64) {
	scale := math.Max(math.Abs(left), math.Abs(right))
	if scale > 1 {
		return left / scale, right / scale
	}
	return left, right
}

// NormaliseSigned scales by the signed maximum, so commands that are both
// negative are passed through for the channels to clamp.
func NormaliseSigned(left, right float64) (float64, float64) {
	scale := math.Max(left, right)
	if scale > 1 {
		return left / scale, right / scale
	}
	return left, right
}
