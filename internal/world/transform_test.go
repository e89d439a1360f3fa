package world

import (
	"math"
	"testing"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/graph"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateAndRotate(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/world", 0o755))
	w := newWorld(t, fsys, Options{})

	p := api.NewPayload()
	id := w.Graph().Spawn(&graph.Node{Path: "/world/box", Payload: p})

	require.NoError(t, w.Translate(id, api.Vec3{1, 2, 3}))
	require.NoError(t, w.Translate(id, api.Vec3{1, 0, 0}))
	n, err := w.Graph().GetNode(id)
	require.NoError(t, err)
	assert.Equal(t, api.Vec3{2, 2, 3}, n.Transform.Translation)
	assert.Equal(t, n.Transform, p.Transform)

	require.NoError(t, w.Rotate(id, api.Vec3{0, 0, 2}, math.Pi/2))
	require.NoError(t, w.Rotate(id, api.Vec3{0, 0, 1}, math.Pi/2))
	q := n.Transform.Rotation
	// Two quarter turns about z make a half turn.
	assert.InDelta(t, 0, q[0], 1e-6)
	assert.InDelta(t, 0, q[1], 1e-6)
	assert.InDelta(t, 1, math.Abs(float64(q[2])), 1e-6)
	assert.InDelta(t, 0, q[3], 1e-6)

	assert.ErrorIs(t, w.Rotate(id, api.Vec3{}, 1), ErrZeroAxis)
	assert.ErrorIs(t, w.Translate(999, api.Vec3{}), graph.ErrNotFound)
}

func TestLeaveSkipsNodesWithoutPayload(t *testing.T) {
	fsys := memfs.New()
	write(t, fsys, "/world/room1/a.txt", "x")
	w := newWorld(t, fsys, Options{})
	require.NoError(t, w.Navigate("room1"))
	// a.txt has no payload, so there is nothing to cache.
	n := nodeAt(t, w, "/world/room1/a.txt")
	require.NoError(t, w.MoveNode(n.ID, api.Identity()))
	require.NoError(t, w.Navigate(".."))
	assert.Zero(t, w.Cache().Len())
}
