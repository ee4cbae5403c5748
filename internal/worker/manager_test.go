package worker

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"swapd/internal/app/infra/mq/memqueue"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/framework"
)

func testSpec() Spec {
	return Spec{
		Name: "swap",
		Subscriber: framework.SubscriberConfig{
			QueueName:    "swap_order",
			Concurrency:  1,
			Timeout:      10 * time.Millisecond,
			TTR:          time.Minute,
			Rate:         time.Millisecond,
			ErrorBackoff: time.Millisecond,
		},
		Processor: framework.ProcessorConfig{Concurrency: 4, BufferSize: 8, Timeout: time.Second},
	}
}

func TestManager_ProcessesAndShutsDown(t *testing.T) {
	q := memqueue.New(16)
	processed := atomic.NewInt32(0)
	proc := func(ctx context.Context, msg *framework.Message) *framework.JobResp {
		processed.Inc()
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}

	mgr, err := NewManagerInstance([]Spec{testSpec()}, q, proc, logger.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = mgr.Start()
		close(done)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Publish(context.Background(), "swap_order", []byte(strconv.Itoa(i))))
	}
	assert.Eventually(t, func() bool { return processed.Load() == 5 }, 3*time.Second, 5*time.Millisecond)

	mgr.Shutdown()
	mgr.Shutdown()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, 0, q.Len("swap_order"))
}

func TestManager_RequiresWorkers(t *testing.T) {
	_, err := NewManagerInstance(nil, memqueue.New(1), nil, logger.NewNop())
	assert.Error(t, err)
}
