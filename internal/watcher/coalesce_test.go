package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
)

func ev(op fsnotify.Op, name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: op}
}

func TestCoalesce(t *testing.T) {
	cases := []struct {
		name string
		in   []fsnotify.Event
		want []Event
	}{
		{
			name: "rename within room",
			in:   []fsnotify.Event{ev(fsnotify.Rename, "/w/a.png"), ev(fsnotify.Create, "/w/b.png")},
			want: []Event{{Kind: RenameBoth, Paths: []string{"/w/a.png", "/w/b.png"}}},
		},
		{
			name: "moved out of room",
			in:   []fsnotify.Event{ev(fsnotify.Rename, "/w/a.png")},
			want: []Event{{Kind: RenameFrom, Paths: []string{"/w/a.png"}}},
		},
		{
			name: "create then remove cancels",
			in:   []fsnotify.Event{ev(fsnotify.Create, "/w/tmp.png"), ev(fsnotify.Write, "/w/tmp.png"), ev(fsnotify.Remove, "/w/tmp.png")},
			want: []Event{{Kind: Data, Paths: []string{"/w/tmp.png"}}},
		},
		{
			name: "remove then create refreshes",
			in:   []fsnotify.Event{ev(fsnotify.Remove, "/w/a.png"), ev(fsnotify.Create, "/w/a.png")},
			want: []Event{{Kind: Metadata, Paths: []string{"/w/a.png"}}},
		},
		{
			name: "chmod is metadata",
			in:   []fsnotify.Event{ev(fsnotify.Chmod, "/w/a.png")},
			want: []Event{{Kind: Metadata, Paths: []string{"/w/a.png"}}},
		},
		{
			name: "dotfiles dropped",
			in: []fsnotify.Event{
				ev(fsnotify.Create, "/w/.dirworld-save-123"),
				ev(fsnotify.Rename, "/w/.dirworld-save-123"),
				ev(fsnotify.Create, "/w/a.png"),
			},
			want: []Event{{Kind: Create, Paths: []string{"/w/a.png"}}},
		},
		{
			name: "duplicates collapse",
			in:   []fsnotify.Event{ev(fsnotify.Chmod, "/w/a"), ev(fsnotify.Chmod, "/w/a"), ev(fsnotify.Create, "/w/b")},
			want: []Event{{Kind: Metadata, Paths: []string{"/w/a"}}, {Kind: Create, Paths: []string{"/w/b"}}},
		},
		{
			name: "order kept",
			in:   []fsnotify.Event{ev(fsnotify.Create, "/w/b"), ev(fsnotify.Remove, "/w/a")},
			want: []Event{{Kind: Create, Paths: []string{"/w/b"}}, {Kind: Remove, Paths: []string{"/w/a"}}},
		},
		{
			name: "empty",
			in:   nil,
			want: []Event{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Coalesce(tc.in))
		})
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "rename-both", RenameBoth.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestQueue(t *testing.T) {
	q := newQueue[int]()
	assert.Nil(t, q.drain())
	for i := 0; i < 100; i++ {
		assert.True(t, q.push(i))
	}
	assert.Equal(t, 100, q.len())
	got := q.drain()
	assert.Len(t, got, 100)
	assert.Equal(t, 99, got[99])
	assert.Zero(t, q.len())

	q.close()
	assert.False(t, q.push(1))
	_, ok := <-q.wait()
	assert.False(t, ok)
}
