package simulator

import "github.com/OCAP2/markertracker/pkg/spatial"

// Row places one tracked QR code per payload on a wall one meter ahead of
// the origin, spacing meters apart along X and centered on X=0. Entity IDs
// and marker IDs start at 1.
func Row(payloads []string, spacing, size float64) []Entity {
	entities := make([]Entity, 0, len(payloads))
	offset := spacing * float64(len(payloads)-1) / 2
	for i, payload := range payloads {
		entities = append(entities, Entity{
			ID:         spatial.EntityID(i + 1),
			State:      spatial.TrackingStateTracking,
			Capability: spatial.CapabilityMarkerTrackingQRCode,
			MarkerID:   uint32(i + 1),
			BufferType: spatial.BufferTypeString,
			Payload:    payload,
			Bounds: spatial.Bounded2DData{
				Center: spatial.Posef{
					Orientation: spatial.Quaternionf{W: 1},
					Position: spatial.Vector3f{
						X: float32(float64(i)*spacing - offset),
						Y: 1.5,
						Z: -1,
					},
				},
				Extents: spatial.Extent2Df{Width: float32(size), Height: float32(size)},
			},
		})
	}
	return entities
}
