package svorder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/domains/modules/mdswap"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/infra/mq/memqueue"
	"swapd/internal/app/infra/persistence/database"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
	"swapd/internal/common/model"
)

const queueName = "swap_order"

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, queue string, data []byte) error {
	return errors.New("connection refused")
}

type failingRepo struct{ rporder.OrderRepository }

func (failingRepo) Upsert(ctx context.Context, order *etorder.Order) error {
	return errors.New("database is locked")
}

func newService(t *testing.T, pub mdswap.JobPublisher) (*OrderService, rporder.OrderRepository, *metrics.Metrics) {
	t.Helper()
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: ":memory:", AutoMigrate: true})
	require.NoError(t, err)

	repo := rporder.NewOrderRepository(db)
	m := metrics.NewNop()
	svc := NewOrderService(repo, mdswap.NewSwapModule(pub, queueName), logger.NewNop(), m)
	return svc, repo, m
}

func countOrders(t *testing.T, repo rporder.OrderRepository) int {
	t.Helper()
	stale, err := repo.ListStalePending(context.Background(), time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	return len(stale)
}

func TestSubmit_WritesPendingThenEnqueues(t *testing.T) {
	q := memqueue.New(8)
	svc, repo, m := newService(t, q)
	ctx := context.Background()

	id, err := svc.Submit(ctx, etorder.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 10})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, etorder.StagePending, got.Stage)

	msg, err := q.Consume(queueName, time.Second, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, msg)

	var job model.Job
	require.NoError(t, json.Unmarshal(msg.Data, &job))
	assert.Equal(t, model.ActionSwapOrder, job.Payload.Data.ActionType)
	assert.Equal(t, id, job.Payload.Data.ID)
	assert.NotEmpty(t, job.Payload.Data.RequestID)

	var item model.SwapJob
	require.NoError(t, json.Unmarshal(job.Payload.Data.Data, &item))
	assert.Equal(t, model.SwapJob{OrderID: id, TokenIn: "SOL", TokenOut: "USDC", Amount: 10}, item)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersSubmitted))
}

func TestSubmit_ValidationHasNoSideEffects(t *testing.T) {
	q := memqueue.New(8)
	svc, repo, _ := newService(t, q)

	_, err := svc.Submit(context.Background(), etorder.Request{TokenIn: "SOL", TokenOut: "USDC"})
	require.Error(t, err)
	assert.True(t, errorx.IsValidation(err))

	assert.Equal(t, 0, countOrders(t, repo))
	assert.Equal(t, 0, q.Len(queueName))
}

func TestSubmit_EnqueueFailureSurfaces(t *testing.T) {
	svc, repo, m := newService(t, failingPublisher{})

	_, err := svc.Submit(context.Background(), etorder.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	assert.ErrorIs(t, err, errorx.ErrQueueUnavailable)

	// 客户端没有拿到 orderId，记录被终结为 failed，不会留给对账任务
	assert.Equal(t, 0, countOrders(t, repo))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OrdersSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageTransitions.WithLabelValues(string(etorder.StageFailed))))
}

func TestSubmit_FullQueueLeavesFailedRecord(t *testing.T) {
	q := memqueue.New(1)
	svc, repo, _ := newService(t, q)
	ctx := context.Background()
	req := etorder.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1}

	accepted, err := svc.Submit(ctx, req)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, req)
	require.ErrorIs(t, err, errorx.ErrQueueUnavailable)

	stale, err := repo.ListStalePending(ctx, time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, accepted, stale[0].ID)
	assert.Equal(t, 1, q.Len(queueName))
}

func TestSubmit_StoreFailureDoesNotEnqueue(t *testing.T) {
	q := memqueue.New(8)
	svc := NewOrderService(failingRepo{}, mdswap.NewSwapModule(q, queueName), logger.NewNop(), metrics.NewNop())

	_, err := svc.Submit(context.Background(), etorder.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	require.Error(t, err)
	assert.Equal(t, 0, q.Len(queueName))
}

func TestGetOrder_NotFound(t *testing.T) {
	svc, _, _ := newService(t, memqueue.New(1))
	_, err := svc.GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, errorx.ErrOrderNotFound)
}

