package tasks

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger() *Ledger[string] {
	return New[string](slog.New(slog.DiscardHandler))
}

func TestPollAppliesOnceInOrder(t *testing.T) {
	l := newLedger()
	_, err := l.Spawn("lock /w/vault", func() ([]string, error) {
		return []string{"save a", "save b", "save c"}, nil
	})
	require.NoError(t, err)
	require.NoError(t, l.Wait(context.Background()))

	var applied []Result[string]
	n := l.Poll(func(r Result[string]) { applied = append(applied, r) })
	assert.Equal(t, 1, n)
	require.Len(t, applied, 1)
	assert.Equal(t, "lock /w/vault", applied[0].Label)
	assert.Equal(t, []string{"save a", "save b", "save c"}, applied[0].Commands)

	assert.Zero(t, l.Poll(func(Result[string]) { t.Fatal("applied twice") }))
	assert.Zero(t, l.Len())
}

func TestPollSkipsRunningJobs(t *testing.T) {
	l := newLedger()
	release := make(chan struct{})
	_, err := l.Spawn("slow", func() ([]string, error) {
		<-release
		return []string{"done"}, nil
	})
	require.NoError(t, err)

	assert.Zero(t, l.Poll(func(Result[string]) { t.Fatal("running job applied") }))
	assert.Equal(t, []string{"slow"}, l.Pending())

	close(release)
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 1, l.Poll(func(Result[string]) {}))
	assert.Empty(t, l.Pending())
}

func TestFailedJobYieldsNoCommands(t *testing.T) {
	l := newLedger()
	boom := errors.New("encrypt failed")
	_, _ = l.Spawn("bad", func() ([]string, error) {
		return []string{"should not apply"}, boom
	})
	_, _ = l.Spawn("panics", func() ([]string, error) {
		panic("kaboom")
	})
	require.NoError(t, l.Wait(context.Background()))

	var results []Result[string]
	l.Poll(func(r Result[string]) { results = append(results, r) })
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, boom)
	assert.Nil(t, results[0].Commands)
	assert.ErrorContains(t, results[1].Err, "kaboom")
	assert.Nil(t, results[1].Commands)
	assert.Zero(t, l.Len())
}

func TestPollSpawnOrder(t *testing.T) {
	l := newLedger()
	for _, label := range []string{"a", "b", "c", "d"} {
		label := label
		_, err := l.Spawn(label, func() ([]string, error) { return []string{label}, nil })
		require.NoError(t, err)
	}
	require.NoError(t, l.Wait(context.Background()))

	var labels []string
	l.Poll(func(r Result[string]) { labels = append(labels, r.Label) })
	assert.Equal(t, []string{"a", "b", "c", "d"}, labels)
}

func TestWaitHonorsContext(t *testing.T) {
	l := newLedger()
	release := make(chan struct{})
	defer close(release)
	_, _ = l.Spawn("stuck", func() ([]string, error) {
		<-release
		return nil, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	l := newLedger()
	l.Close()
	_, err := l.Spawn("late", func() ([]string, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
}
