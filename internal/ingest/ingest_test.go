package ingest

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/agentic-research/dirworld/api"
	"github.com/agentic-research/dirworld/internal/codec"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() Options {
	return Options{Logger: slog.New(slog.DiscardHandler)}
}

func writeFile(t *testing.T, fsys billy.Filesystem, p string, b []byte) {
	t.Helper()
	require.NoError(t, util.WriteFile(fsys, p, b, 0o644))
}

func marshal(t *testing.T, p *api.Payload) []byte {
	t.Helper()
	b, err := api.MarshalPayload(p)
	require.NoError(t, err)
	return b
}

func TestExtractFolder(t *testing.T) {
	fsys := memfs.New()
	reg := codec.Default()

	require.NoError(t, fsys.MkdirAll("/w/bare", 0o755))
	assert.Equal(t, Entry{}, Extract(fsys, "/w/bare", reg, quiet()))

	p := api.NewPayload()
	writeFile(t, fsys, "/w/room/.door", marshal(t, p))
	e := Extract(fsys, "/w/room", reg, quiet())
	require.NotNil(t, e.Payload)
	assert.Equal(t, p.ID, e.Payload.ID)
	assert.Nil(t, e.Carrier)

	writeFile(t, fsys, "/w/broken/.door", []byte{0xc1, 0xc1})
	assert.Equal(t, Entry{}, Extract(fsys, "/w/broken", reg, quiet()))

	// The parent pseudo entry resolves to the parent folder's marker.
	writeFile(t, fsys, "/w/.door", marshal(t, p))
	e = Extract(fsys, "/w/room/..", reg, quiet())
	require.NotNil(t, e.Payload)
	assert.Equal(t, p.ID, e.Payload.ID)
}

func TestExtractFile(t *testing.T) {
	fsys := memfs.New()
	reg := codec.Default()
	p := api.NewPayload()

	embedded, err := codec.Trailer{}.Encode([]byte("mesh"), marshal(t, p))
	require.NoError(t, err)
	writeFile(t, fsys, "/w/statue.glb", embedded)

	e := Extract(fsys, "/w/statue.glb", reg, quiet())
	require.NotNil(t, e.Payload)
	assert.Equal(t, p.ID, e.Payload.ID)
	assert.Equal(t, []byte("mesh"), e.Carrier)

	t.Run("no codec", func(t *testing.T) {
		writeFile(t, fsys, "/w/notes.md", []byte("# hi"))
		assert.Equal(t, Entry{Carrier: []byte("# hi")}, Extract(fsys, "/w/notes.md", reg, quiet()))
		writeFile(t, fsys, "/w/README", []byte("plain"))
		assert.Equal(t, Entry{Carrier: []byte("plain")}, Extract(fsys, "/w/README", reg, quiet()))
	})

	t.Run("no payload embedded", func(t *testing.T) {
		writeFile(t, fsys, "/w/song.ogg", []byte("vorbis"))
		assert.Equal(t, Entry{Carrier: []byte("vorbis")}, Extract(fsys, "/w/song.ogg", reg, quiet()))
	})

	t.Run("malformed payload keeps carrier", func(t *testing.T) {
		bad, err := codec.Trailer{}.Encode([]byte("mesh"), []byte{0xc1})
		require.NoError(t, err)
		writeFile(t, fsys, "/w/bad.glb", bad)
		assert.Equal(t, Entry{Carrier: []byte("mesh")}, Extract(fsys, "/w/bad.glb", reg, quiet()))
	})

	t.Run("codec failure", func(t *testing.T) {
		writeFile(t, fsys, "/w/fake.png", []byte("not a png at all"))
		assert.Equal(t, Entry{}, Extract(fsys, "/w/fake.png", reg, quiet()))

		bad := append([]byte("x"), binary.BigEndian.AppendUint32(nil, 99)...)
		bad = append(bad, "DWPAYLD1"...)
		writeFile(t, fsys, "/w/corrupt.mp3", bad)
		assert.Equal(t, Entry{}, Extract(fsys, "/w/corrupt.mp3", reg, quiet()))
	})

	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, Entry{}, Extract(fsys, "/w/gone.png", reg, quiet()))
	})
}

func TestExtractLogsCodecFailure(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	fsys := memfs.New()
	writeFile(t, fsys, "/w/fake.png", []byte("nope"))

	Extract(fsys, "/w/fake.png", codec.Default(), opts)
	assert.Contains(t, buf.String(), "codec failed")
	assert.Contains(t, buf.String(), "/w/fake.png")
}

func TestListRoom(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/w/room1/a.png", []byte("a"))
	writeFile(t, fsys, "/w/room1/.door", []byte("x"))
	writeFile(t, fsys, "/w/room1/.hidden.png", []byte("x"))
	require.NoError(t, fsys.MkdirAll("/w/room1/sub", 0o755))
	writeFile(t, fsys, "/w/room1/sub/deep.png", []byte("x"))

	got, err := ListRoom(fsys, "/w/room1", "/w")
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/room1/..", "/w/room1/a.png", "/w/room1/sub"}, got)

	got, err = ListRoom(fsys, "/w", "/w/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/room1"}, got)

	for _, p := range got {
		assert.False(t, IsHidden(filepath.Base(p)))
	}

	_, err = ListRoom(fsys, "/w/missing", "/w")
	assert.Error(t, err)
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "/w/room/..", ParentPath("/w/room"))
	assert.Equal(t, "/w/room/..", ParentPath("/w/room/"))
	assert.True(t, IsParent("/w/room/.."))
	assert.False(t, IsParent("/w/room"))
}

func TestSelect(t *testing.T) {
	name := "Lantern"
	p := api.NewPayload()
	p.Name = &name
	p.Scripts = []api.Script{{Language: "lua", Source: "a"}, {Language: "yarn", Source: "b"}}

	got, err := Select(p, "$.name")
	require.NoError(t, err)
	assert.Equal(t, []any{"Lantern"}, got)

	got, err = Select(p, "$.scripts[*].language")
	require.NoError(t, err)
	assert.Equal(t, []any{"lua", "yarn"}, got)

	got, err = Select(p, "$.id")
	require.NoError(t, err)
	assert.Equal(t, []any{p.ID.String()}, got)

	_, err = Select(p, "$[")
	assert.Error(t, err)
}
