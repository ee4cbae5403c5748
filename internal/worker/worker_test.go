package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"swapd/internal/app/infra/mq/memqueue"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/framework"
)

func newTestWorker(t *testing.T, q *memqueue.Queue, spec Spec, proc framework.Proc) *WorkerInstance {
	t.Helper()
	w, err := NewWorkerInstance(context.Background(), spec.Name, &spec.Subscriber, &spec.Processor, q, proc, logger.NewNop())
	require.NoError(t, err)
	return w.(*WorkerInstance)
}

func TestWorker_ShutdownBeforeStart(t *testing.T) {
	proc := func(ctx context.Context, msg *framework.Message) *framework.JobResp {
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}
	w := newTestWorker(t, memqueue.New(1), testSpec(), proc)

	w.Shutdown()
	w.Shutdown()

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start blocked after Shutdown")
	}
	assert.Equal(t, Stats{}, w.Stats())
}

func TestWorker_ReleasedJobIsRedelivered(t *testing.T) {
	q := memqueue.New(4)
	spec := testSpec()
	spec.Subscriber.TTR = 20 * time.Millisecond

	calls := atomic.NewInt32(0)
	proc := func(ctx context.Context, msg *framework.Message) *framework.JobResp {
		if calls.Inc() == 1 {
			return &framework.JobResp{Action: framework.JobRespStatusRelease}
		}
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}
	w := newTestWorker(t, q, spec, proc)

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()
	require.NoError(t, q.Publish(context.Background(), "swap_order", []byte(`{}`)))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 3*time.Second, 5*time.Millisecond)
	w.Shutdown()
	<-done

	assert.Equal(t, Stats{Pulled: 2, Redelivered: 1}, w.Stats())
	assert.Equal(t, 0, q.Len("swap_order"))
}
