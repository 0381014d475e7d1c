package angle

import "math"

// PlusMinusPi is an angle in radians, stored as a value in range (-π, π].
// All operations wrap their output into range.
type PlusMinusPi struct {
	float64
}

func (a PlusMinusPi) Add(b PlusMinusPi) PlusMinusPi {
	return FromFloat(a.float64 + b.float64)
}

func (a PlusMinusPi) Sub(b PlusMinusPi) PlusMinusPi {
	return FromFloat(a.float64 - b.float64)
}

func (a PlusMinusPi) AddFloat(f float64) PlusMinusPi {
	return FromFloat(a.float64 + f)
}

func (a PlusMinusPi) SubFloat(f float64) PlusMinusPi {
	return FromFloat(a.float64 - f)
}

// Float returns the angle in radians, range (-π, π].
func (a PlusMinusPi) Float() float64 {
	return a.float64
}

// Degrees returns the angle in degrees, range (-180, 180].
func (a PlusMinusPi) Degrees() float64 {
	return ToDegrees(a.float64)
}

// FromFloat converts a float of any magnitude to a PlusMinusPi by calculating
// f mod 2π and shifting into range.
func FromFloat(f float64) PlusMinusPi {
	d := math.Mod(f, 2*math.Pi)
	if d <= -math.Pi {
		d += 2 * math.Pi
	} else if d > math.Pi {
		d -= 2 * math.Pi
	}
	return PlusMinusPi{d}
}

// Rem2Pi is the truncated remainder of f by 2π.  The result has the sign of f,
// so it lies in (-2π, 2π).
func Rem2Pi(f float64) float64 {
	return math.Mod(f, 2*math.Pi)
}

func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func ToDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}
