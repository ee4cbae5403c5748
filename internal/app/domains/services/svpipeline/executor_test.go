package svpipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/domains/repo/rporder"
	"swapd/internal/app/infra/bus"
	"swapd/internal/app/infra/venue"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/app/pkg/logger"
	"swapd/internal/app/pkg/metrics"
	"swapd/internal/common/entity"
	"swapd/internal/common/model"
)

// stubExchange 固定报价的交易场所
type stubExchange struct {
	venues   []string
	prices   map[string]float64
	quoteErr map[string]error
	execErr  error

	mu       sync.Mutex
	executed []string
}

func (s *stubExchange) Venues() []string { return s.venues }

func (s *stubExchange) Quote(ctx context.Context, name, pair string, amount float64) (float64, error) {
	if err := s.quoteErr[name]; err != nil {
		return 0, err
	}
	return s.prices[name], nil
}

func (s *stubExchange) Execute(ctx context.Context, name, pair string, amount, price float64) (venue.Receipt, error) {
	s.mu.Lock()
	s.executed = append(s.executed, name)
	s.mu.Unlock()
	if s.execErr != nil {
		return venue.Receipt{}, s.execErr
	}
	return venue.Receipt{TxHash: "feed" + name, ExecutedPrice: price - 0.01}, nil
}

// recordingBus 记录发布的事件，并在发布时读取快照，校验“先落库后发布”
type recordingBus struct {
	repo rporder.OrderRepository
	err  error

	mu        sync.Mutex
	events    []etorder.StatusEvent
	atPublish []etorder.Stage
}

func (b *recordingBus) Publish(ctx context.Context, orderID string, ev etorder.StatusEvent) error {
	stored, err := b.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.atPublish = append(b.atPublish, stored.Stage)
	b.mu.Unlock()
	return b.err
}

func (b *recordingBus) Subscribe(ctx context.Context, orderID string) (*bus.Subscription, error) {
	return bus.NewSubscription(orderID, 1), nil
}

func (b *recordingBus) Unsubscribe(sub *bus.Subscription) { sub.Close() }

func (b *recordingBus) stages() []etorder.Stage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]etorder.Stage, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Stage)
	}
	return out
}

type fixture struct {
	repo     rporder.OrderRepository
	bus      *recordingBus
	exchange *stubExchange
	metrics  *metrics.Metrics
	exec     *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&entity.Order{}))

	repo := rporder.NewOrderRepository(db)
	f := &fixture{
		repo: repo,
		bus:  &recordingBus{repo: repo},
		exchange: &stubExchange{
			venues: []string{"raydium", "meteora"},
			prices: map[string]float64{"raydium": 99.04, "meteora": 97.71},
		},
		metrics: metrics.NewNop(),
	}
	f.exec = NewExecutor(f.repo, f.bus, f.exchange, logger.NewNop(), f.metrics)
	return f
}

func (f *fixture) submit(t *testing.T, id string) model.SwapJob {
	t.Helper()
	order, err := etorder.NewOrder(id, etorder.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 10})
	require.NoError(t, err)
	require.NoError(t, f.repo.Upsert(context.Background(), order))
	return model.SwapJob{OrderID: id, TokenIn: "SOL", TokenOut: "USDC", Amount: 10}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name   string
		quotes []etorder.Quote
		want   string
	}{
		{"higher wins", []etorder.Quote{{Venue: "raydium", Price: 99.04}, {Venue: "meteora", Price: 97.71}}, "raydium"},
		{"order independent", []etorder.Quote{{Venue: "meteora", Price: 97.71}, {Venue: "raydium", Price: 99.04}}, "raydium"},
		{"tie keeps first", []etorder.Quote{{Venue: "meteora", Price: 98}, {Venue: "raydium", Price: 98}}, "meteora"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, err := SelectBest(tt.quotes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, best.Venue)
		})
	}

	_, err := SelectBest(nil)
	assert.Error(t, err)
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, "o-1")

	require.NoError(t, f.exec.Run(context.Background(), job))

	assert.Equal(t, []etorder.Stage{
		etorder.StageRouting, etorder.StageBuilding, etorder.StageSubmitted, etorder.StageConfirmed,
	}, f.bus.stages())
	// 每个事件发布时快照已是同一阶段
	assert.Equal(t, f.bus.stages(), f.bus.atPublish)

	got, err := f.repo.GetByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, etorder.StageConfirmed, got.Stage)
	require.NotNil(t, got.Result)
	assert.Equal(t, "raydium", got.Result.Venue)
	assert.Equal(t, "feedraydium", got.Result.Receipt)
	assert.InDelta(t, 99.03, got.Result.Price, 1e-9)
	assert.Len(t, got.Quotes, 2)

	last := f.bus.events[len(f.bus.events)-1]
	require.NotNil(t, last.Result)
	assert.Equal(t, "feedraydium", last.Result.Receipt)
	assert.Equal(t, []string{"raydium"}, f.exchange.executed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageTransitions.WithLabelValues("confirmed")))
}

func TestRun_ExecutionFailure(t *testing.T) {
	f := newFixture(t)
	f.exchange.execErr = errors.New("slippage tolerance exceeded")
	job := f.submit(t, "o-2")

	require.NoError(t, f.exec.Run(context.Background(), job))

	assert.Equal(t, []etorder.Stage{
		etorder.StageRouting, etorder.StageBuilding, etorder.StageSubmitted, etorder.StageFailed,
	}, f.bus.stages())

	got, err := f.repo.GetByID(context.Background(), "o-2")
	require.NoError(t, err)
	assert.Equal(t, etorder.StageFailed, got.Stage)
	assert.Contains(t, got.Error, "slippage tolerance exceeded")
	assert.Nil(t, got.Result)

	last := f.bus.events[len(f.bus.events)-1]
	assert.NotEmpty(t, last.Error)
	assert.Nil(t, last.Result)
}

func TestRun_QuoteFailureFailsRouting(t *testing.T) {
	f := newFixture(t)
	f.exchange.quoteErr = map[string]error{"meteora": errors.New("rpc timeout")}
	job := f.submit(t, "o-3")

	require.NoError(t, f.exec.Run(context.Background(), job))

	assert.Equal(t, []etorder.Stage{etorder.StageRouting, etorder.StageFailed}, f.bus.stages())
	got, err := f.repo.GetByID(context.Background(), "o-3")
	require.NoError(t, err)
	assert.Contains(t, got.Error, "meteora")
	assert.Empty(t, f.exchange.executed)
}

func TestRun_DuplicateJobSkipped(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, "o-4")

	require.NoError(t, f.exec.Run(context.Background(), job))
	require.NoError(t, f.exec.Run(context.Background(), job))

	assert.Len(t, f.bus.stages(), 4)
	assert.Len(t, f.exchange.executed, 1)
}

func TestRun_MissingRecord(t *testing.T) {
	f := newFixture(t)

	err := f.exec.Run(context.Background(), model.SwapJob{OrderID: "ghost", TokenIn: "SOL", TokenOut: "USDC", Amount: 1})
	assert.ErrorIs(t, err, errorx.ErrOrderNotFound)
	assert.False(t, errorx.Retryable(err))
	assert.Empty(t, f.bus.stages())
}

func TestRun_PublishFailureDoesNotStopPipeline(t *testing.T) {
	f := newFixture(t)
	f.bus.err = errors.New("redis down")
	job := f.submit(t, "o-5")

	require.NoError(t, f.exec.Run(context.Background(), job))

	got, err := f.repo.GetByID(context.Background(), "o-5")
	require.NoError(t, err)
	assert.Equal(t, etorder.StageConfirmed, got.Stage)
}

func TestRun_ContextErrorRecordedAsFailure(t *testing.T) {
	f := newFixture(t)
	f.exchange.execErr = context.DeadlineExceeded
	job := f.submit(t, "o-6")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.exec.Run(ctx, job))

	got, err := f.repo.GetByID(context.Background(), "o-6")
	require.NoError(t, err)
	assert.Equal(t, etorder.StageFailed, got.Stage)
}

func TestRun_ConcurrentOrdersDoNotInterfere(t *testing.T) {
	f := newFixture(t)
	ids := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, id := range ids {
		job := f.submit(t, id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.exec.Run(context.Background(), job))
		}()
	}
	wg.Wait()

	perOrder := map[string][]etorder.Stage{}
	for _, ev := range f.bus.events {
		perOrder[ev.OrderID] = append(perOrder[ev.OrderID], ev.Stage)
	}
	for _, id := range ids {
		assert.Equal(t, []etorder.Stage{
			etorder.StageRouting, etorder.StageBuilding, etorder.StageSubmitted, etorder.StageConfirmed,
		}, perOrder[id], id)
	}
}
