package pose

import "math"

// AngleBetween returns the angle in degrees at vertex p2 formed by the rays
// to p1 and p3, in the range [0, 180].
// Coordinates must be finite.
func AngleBetween(p1, p2, p3 Point) float64 {
	radians := math.Atan2(p3.Y-p2.Y, p3.X-p2.X) - math.Atan2(p1.Y-p2.Y, p1.X-p2.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360.0 - angle
	}
	return angle
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Slope returns the absolute angle in degrees of the line from a to b
// relative to horizontal, in the range [0, 180].
func Slope(a, b Point) float64 {
	return math.Abs(math.Atan2(b.Y-a.Y, b.X-a.X) * 180.0 / math.Pi)
}

// coincident reports whether two points are too close to define a ray.
func coincident(a, b Point) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) < 1e-9
}
