// pkg/core/types.go
package core

import "github.com/OCAP2/markertracker/pkg/spatial"

// Position3D is a point in a reference space, in meters
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a unit rotation
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion has no rotation
var IdentityQuaternion = Quaternion{W: 1}

// Pose is a position plus orientation in the caller's reference space
type Pose struct {
	Position    Position3D `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Extent2D is the width/height of a planar marker, in meters
type Extent2D struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PoseFromSpatial converts a runtime pose.
func PoseFromSpatial(p spatial.Posef) Pose {
	return Pose{
		Position: Position3D{
			X: float64(p.Position.X),
			Y: float64(p.Position.Y),
			Z: float64(p.Position.Z),
		},
		Orientation: Quaternion{
			X: float64(p.Orientation.X),
			Y: float64(p.Orientation.Y),
			Z: float64(p.Orientation.Z),
			W: float64(p.Orientation.W),
		},
	}
}

// ExtentFromSpatial converts runtime extents.
func ExtentFromSpatial(e spatial.Extent2Df) Extent2D {
	return Extent2D{Width: float64(e.Width), Height: float64(e.Height)}
}
