package memqueue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"swapd/internal/app/pkg/errorx"
	"swapd/internal/framework"
)

// Queue 进程内队列，语义与 lmstfy 对齐：
// Consume 后未在 TTR 内 ACK 的消息重新入队
type Queue struct {
	mu       sync.Mutex
	queues   map[string]chan *framework.Message
	inflight map[string]*time.Timer
	buffer   int
	seq      *atomic.Int64
}

var _ framework.MessageSource = (*Queue)(nil)

// New 创建进程内队列，buffer 为单个队列容量
func New(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Queue{
		queues:   make(map[string]chan *framework.Message),
		inflight: make(map[string]*time.Timer),
		buffer:   buffer,
		seq:      atomic.NewInt64(0),
	}
}

// Publish 入队，队列已满时返回 ErrQueueUnavailable
func (q *Queue) Publish(ctx context.Context, queue string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &framework.Message{
		ID:    "mq-" + strconv.FormatInt(q.seq.Inc(), 10),
		Queue: queue,
		Data:  append([]byte(nil), data...),
		Extra: map[string]interface{}{},
	}
	if !q.offer(msg) {
		return fmt.Errorf("%w: queue %s is full", errorx.ErrQueueUnavailable, queue)
	}
	return nil
}

// Consume 拉取消息，超时返回 nil, nil
func (q *Queue) Consume(queue string, timeout time.Duration, ttr time.Duration) (*framework.Message, error) {
	ch := q.channel(queue)

	var msg *framework.Message
	select {
	case msg = <-ch:
	case <-time.After(timeout):
		return nil, nil
	}

	msg.Attempts++
	if ttr > 0 {
		q.mu.Lock()
		q.inflight[msg.ID] = time.AfterFunc(ttr, func() { q.redeliver(msg) })
		q.mu.Unlock()
	}
	return msg, nil
}

// Ack 确认消息，取消重新投递
func (q *Queue) Ack(queue string, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.inflight[jobID]; ok {
		t.Stop()
		delete(q.inflight, jobID)
	}
	return nil
}

// Len 队列中待消费的消息数
func (q *Queue) Len(queue string) int {
	return len(q.channel(queue))
}

func (q *Queue) redeliver(msg *framework.Message) {
	q.mu.Lock()
	_, pending := q.inflight[msg.ID]
	delete(q.inflight, msg.ID)
	q.mu.Unlock()

	if pending {
		q.offer(msg)
	}
}

func (q *Queue) offer(msg *framework.Message) bool {
	select {
	case q.channel(msg.Queue) <- msg:
		return true
	default:
		return false
	}
}

func (q *Queue) channel(queue string) chan *framework.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.queues[queue]
	if !ok {
		ch = make(chan *framework.Message, q.buffer)
		q.queues[queue] = ch
	}
	return ch
}
