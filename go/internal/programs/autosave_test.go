package programs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

type recordingSaver struct {
	mu    sync.Mutex
	saves []models.Program
	err   error
}

func (r *recordingSaver) Save(_ context.Context, p models.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, p)
	return nil
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingSaver) last() models.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func TestAutoSaveDebounces(t *testing.T) {
	fc := clockwork.NewFakeClock()
	saver := &recordingSaver{}
	a := NewAutoSaver(saver, AutoSaveConfig{Clock: fc})

	p := sampleProgram("p1")
	require.True(t, a.Schedule(p))
	fc.Advance(time.Second)

	p.Title = "Second edit"
	require.True(t, a.Schedule(p))
	fc.Advance(1500 * time.Millisecond)
	assert.Zero(t, saver.count())

	fc.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return saver.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Second edit", saver.last().Title)
}

func TestAutoSaveSkips(t *testing.T) {
	fc := clockwork.NewFakeClock()
	saver := &recordingSaver{}

	readOnly := NewAutoSaver(saver, AutoSaveConfig{Clock: fc, ReadOnly: true})
	assert.False(t, readOnly.Schedule(sampleProgram("p1")))

	a := NewAutoSaver(saver, AutoSaveConfig{Clock: fc})
	assert.False(t, a.Schedule(models.NewProgram(time.Now())), "placeholder")

	a.MarkSaved(sampleProgram("p1"))
	assert.False(t, a.Schedule(sampleProgram("p1")), "unchanged")

	fc.Advance(5 * time.Second)
	assert.Zero(t, saver.count())
}

func TestAutoSaveFlushAndClose(t *testing.T) {
	fc := clockwork.NewFakeClock()
	saver := &recordingSaver{}
	a := NewAutoSaver(saver, AutoSaveConfig{Clock: fc})

	require.True(t, a.Schedule(sampleProgram("p1")))
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, saver.count())

	// The debounce timer was cancelled by the flush.
	fc.Advance(5 * time.Second)
	assert.Equal(t, 1, saver.count())

	p := sampleProgram("p1")
	p.Title = "after close"
	assert.False(t, a.Schedule(p))
}

func TestAutoSaveReportsFailure(t *testing.T) {
	fc := clockwork.NewFakeClock()
	boom := errors.New("db down")
	saver := &recordingSaver{err: boom}

	var (
		mu     sync.Mutex
		failed []error
	)
	a := NewAutoSaver(saver, AutoSaveConfig{
		Clock: fc,
		OnError: func(_ models.Program, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, err)
		},
	})

	require.True(t, a.Schedule(sampleProgram("p1")))
	fc.Advance(DefaultAutoSaveDelay)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.ErrorIs(t, failed[0], boom)
	mu.Unlock()

	// A failed save does not become the baseline, so the same content is retried.
	assert.True(t, a.Schedule(sampleProgram("p1")))
}
