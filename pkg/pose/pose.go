// Package pose holds the robot's 2-D pose and the arrival test used against
// a target pose.
//
// Frame convention: heading 0 faces +Y, and heading increases clockwise (from
// +Y towards +X).  Headings are radians and are not wrapped.
package pose

import (
	"fmt"

	"github.com/golang/geo/r2"
)

type Pose struct {
	X, Y    float64
	Heading float64
}

func (p Pose) Position() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Offset returns the vector from p to other.
func (p Pose) Offset(other Pose) r2.Point {
	return other.Position().Sub(p.Position())
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3frad)", p.X, p.Y, p.Heading)
}

// InRange reports whether a lies in the open interval (b-span, b+span).
func InRange(a, b, span float64) bool {
	return a > (b-span) && a < (b+span)
}

// Within reports whether p is inside the given tolerances of target on x, y
// and heading simultaneously.  Headings are compared unwrapped.
func (p Pose) Within(target Pose, positionTolerance, headingTolerance float64) bool {
	return InRange(p.X, target.X, positionTolerance) &&
		InRange(p.Y, target.Y, positionTolerance) &&
		InRange(p.Heading, target.Heading, headingTolerance)
}
