// Package geom provides the small amount of 3D vector and Euler-angle math
// needed to move between OSI world coordinates and scenario reference points.
//
// OSI positions describe the center of an object's bounding box in a
// right-handed world frame (x east, y north, z up). Orientations are
// yaw/pitch/roll Euler angles in radians.
package geom

import "math"

// Vec3 is a point or offset in the OSI world frame, in meters.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Euler holds an orientation as yaw/pitch/roll angles in radians.
type Euler struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// Dim3 holds a bounding-box extent in meters.
type Dim3 struct {
	Length float64
	Width  float64
	Height float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// Distance2D returns the distance between a and b in the ground plane,
// ignoring z.
func Distance2D(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// RotateXYZ rotates v by the given Euler angles applying roll (x-axis)
// first, then pitch (y-axis), then yaw (z-axis).
func RotateXYZ(v Vec3, e Euler) Vec3 {
	cy, sy := math.Cos(e.Yaw), math.Sin(e.Yaw)
	cp, sp := math.Cos(e.Pitch), math.Sin(e.Pitch)
	cr, sr := math.Cos(e.Roll), math.Sin(e.Roll)

	return Vec3{
		X: (cp*cy)*v.X + (-cp*sy)*v.Y + sp*v.Z,
		Y: (sr*sp*cy+cr*sy)*v.X + (-sr*sp*sy+cr*cy)*v.Y + (-sr*cp)*v.Z,
		Z: (-cr*sp*cy+sr*sy)*v.X + (cr*sp*sy+sr*cy)*v.Y + (cr*cp)*v.Z,
	}
}

// RotateZYX rotates v by the given Euler angles applying yaw (z-axis)
// first, then pitch (y-axis), then roll (x-axis).
func RotateZYX(v Vec3, e Euler) Vec3 {
	cy, sy := math.Cos(e.Yaw), math.Sin(e.Yaw)
	cp, sp := math.Cos(e.Pitch), math.Sin(e.Pitch)
	cr, sr := math.Cos(e.Roll), math.Sin(e.Roll)

	return Vec3{
		X: (cy*cp)*v.X + (cy*sp*sr-sy*cr)*v.Y + (cy*sp*cr+sy*sr)*v.Z,
		Y: (sy*cp)*v.X + (sy*sp*sr+cy*cr)*v.Y + (sy*sp*cr-cy*sr)*v.Z,
		Z: (-sp)*v.X + (cp*sr)*v.Y + (cp*cr)*v.Z,
	}
}

// WrapAngle normalizes an angle in radians to the interval (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the smallest signed angle from b to a, in radians.
// The result is in (-pi, pi], so AngleDiff on headings either side of the
// +/-pi seam stays small instead of jumping by a full turn.
func AngleDiff(a, b float64) float64 {
	return WrapAngle(a - b)
}
