package geo

import (
	"errors"

	"github.com/OCAP2/markertracker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// GEO POINTS
// Positions are stored in the device reference space (meters, Y up) as XYZ
// geometries. SQLite has no spatial awareness, so geometry columns are WKB
// blobs read back through the geom Scan implementations.

// ErrEmptyGeometry is returned when a stored geometry has no coordinates.
var ErrEmptyGeometry = errors.New("empty geometry")

// PointFromPosition converts a position into an XYZ point.
func PointFromPosition(p core.Position3D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Z,
		Type: geom.DimXYZ,
	})
}

// PositionFromPoint reads a position back from an XYZ point.
func PositionFromPoint(pt geom.Point) (core.Position3D, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}, ErrEmptyGeometry
	}
	return core.Position3D{X: c.X, Y: c.Y, Z: c.Z}, nil
}

// Corners returns the four corners of a planar marker in the reference
// space, counter-clockwise starting at the local (-w/2, -h/2) corner. The
// marker lies in the local XY plane of its center pose.
func Corners(pose core.Pose, ext core.Extent2D) [4]core.Position3D {
	hw, hh := ext.Width/2, ext.Height/2
	local := [4]core.Position3D{
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
		{X: hw, Y: hh},
		{X: -hw, Y: hh},
	}

	var out [4]core.Position3D
	for i, l := range local {
		r := Rotate(pose.Orientation, l)
		out[i] = core.Position3D{
			X: pose.Position.X + r.X,
			Y: pose.Position.Y + r.Y,
			Z: pose.Position.Z + r.Z,
		}
	}
	return out
}

// Footprint returns the closed outline of a marker as an XYZ line string.
func Footprint(pose core.Pose, ext core.Extent2D) geom.LineString {
	corners := Corners(pose, ext)
	flat := make([]float64, 0, 5*3)
	for _, c := range corners {
		flat = append(flat, c.X, c.Y, c.Z)
	}
	flat = append(flat, corners[0].X, corners[0].Y, corners[0].Z)

	seq := geom.NewSequence(flat, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// Rotate applies the unit quaternion q to v.
func Rotate(q core.Quaternion, v core.Position3D) core.Position3D {
	// t = 2 * cross(q.xyz, v)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)
	// v + w*t + cross(q.xyz, t)
	return core.Position3D{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}
