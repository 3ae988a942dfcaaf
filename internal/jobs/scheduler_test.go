package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"learnhub_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	calls atomic.Int32
	batch atomic.Int32
	err   error
}

func (f *fakeCloser) CloseStaleSessions(_ context.Context, batch int) (int, error) {
	f.calls.Add(1)
	f.batch.Store(int32(batch))
	return 1, f.err
}

type fakeResetter struct {
	calls atomic.Int32
}

func (f *fakeResetter) ResetBrokenStreaks(context.Context) (int64, error) {
	f.calls.Add(1)
	return 0, nil
}

func TestSweepRunsOnInterval(t *testing.T) {
	closer := &fakeCloser{}
	s := New(closer, &fakeResetter{}, config.TimeTrackingConfig{SweepInterval: 50 * time.Millisecond})
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return closer.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(staleBatch), closer.batch.Load())
}

func TestJobsSurviveErrors(t *testing.T) {
	closer := &fakeCloser{err: errors.New("db down")}
	resetter := &fakeResetter{}
	s := New(closer, resetter, config.DefaultTimeTracking())

	s.SweepStaleSessions()
	s.ResetStreaks()
	assert.Equal(t, int32(1), closer.calls.Load())
	assert.Equal(t, int32(1), resetter.calls.Load())
}
