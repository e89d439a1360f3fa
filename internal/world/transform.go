package world

import (
	"errors"
	"math"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/graph"
)

var ErrZeroAxis = errors.New("rotation axis has zero length")

// MoveNode sets the transform of a live node. The node's payload follows,
// so the new placement is what Leave caches and SaveEntity persists.
func (w *World) MoveNode(id graph.NodeID, t api.Transform) error {
	return w.graph.SetTransform(id, t)
}

// Translate shifts a node by delta.
func (w *World) Translate(id graph.NodeID, delta api.Vec3) error {
	n, err := w.graph.GetNode(id)
	if err != nil {
		return err
	}
	t := n.Transform
	for i := range t.Translation {
		t.Translation[i] += delta[i]
	}
	return w.graph.SetTransform(id, t)
}

// Rotate turns a node by angle radians around axis.
func (w *World) Rotate(id graph.NodeID, axis api.Vec3, angle float64) error {
	l := math.Sqrt(float64(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2]))
	if l == 0 {
		return ErrZeroAxis
	}
	n, err := w.graph.GetNode(id)
	if err != nil {
		return err
	}
	s := math.Sin(angle/2) / l
	q := api.Quat{
		float32(float64(axis[0]) * s),
		float32(float64(axis[1]) * s),
		float32(float64(axis[2]) * s),
		float32(math.Cos(angle / 2)),
	}
	t := n.Transform
	t.Rotation = mulQuat(q, t.Rotation)
	return w.graph.SetTransform(id, t)
}

// mulQuat returns a*b for quaternions stored as x, y, z, w.
func mulQuat(a, b api.Quat) api.Quat {
	return api.Quat{
		a[3]*b[0] + a[0]*b[3] + a[1]*b[2] - a[2]*b[1],
		a[3]*b[1] - a[0]*b[2] + a[1]*b[3] + a[2]*b[0],
		a[3]*b[2] + a[0]*b[1] - a[1]*b[0] + a[2]*b[3],
		a[3]*b[3] - a[0]*b[0] - a[1]*b[1] - a[2]*b[2],
	}
}
