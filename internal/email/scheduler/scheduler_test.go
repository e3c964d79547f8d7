package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/internal/email/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSyncer struct {
	calls   atomic.Int32
	last    atomic.Value
	started chan struct{}
	release chan struct{}
}

func (b *blockingSyncer) Sync(_ context.Context, req usecase.SyncRequest) *usecase.SyncResult {
	b.calls.Add(1)
	b.last.Store(req)
	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	return &usecase.SyncResult{Success: true}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("every now and then", &blockingSyncer{}, 24, nil)
	assert.ErrorContains(t, err, "invalid sync schedule")
}

func TestScheduler_RunUsesCronSource(t *testing.T) {
	syncer := &blockingSyncer{}
	s, err := New("@every 1h", syncer, 6, nil)
	require.NoError(t, err)

	s.job.Run()
	assert.EqualValues(t, 1, syncer.calls.Load())
	assert.Equal(t, usecase.SyncRequest{HoursBack: 6, Source: emaildomain.SourceCron}, syncer.last.Load())
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	syncer := &blockingSyncer{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := New("@every 1h", syncer, 24, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()
	<-syncer.started

	// returns at once while the first run holds the slot
	s.job.Run()
	assert.EqualValues(t, 1, syncer.calls.Load())

	close(syncer.release)
	<-done
}

func TestScheduler_StartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := New("@every 1s", &blockingSyncer{}, 24, nil)
	require.NoError(t, err)

	s.Start(ctx)
	assert.WithinDuration(t, time.Now().Add(time.Second), s.Next(), 2*time.Second)

	cancel()
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cancel == nil
	}, 2*time.Second, 10*time.Millisecond)
}
