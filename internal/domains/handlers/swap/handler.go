package swap

import (
	"context"
	"encoding/json"
	"fmt"

	"swapd/internal/app/domains/entity/etorder"
	"swapd/internal/app/pkg/errorx"
	"swapd/internal/common/model"
	"swapd/internal/framework"
)

// Runner 流水线执行入口（svpipeline.Executor）
type Runner interface {
	Run(ctx context.Context, job model.SwapJob) error
}

// Handler swap 订单执行 Handler
type Handler struct {
	base   *framework.BaseHandler
	runner Runner
	job    model.SwapJob
}

// NewFactory 返回注册到 HandlerMap 的构造函数
func NewFactory(runner Runner) framework.HandlerFactory {
	return func(ctx context.Context, base *framework.BaseHandler) (framework.BusinessHandler, error) {
		h := &Handler{base: base, runner: runner}
		if err := base.DecodePayload(&h.job); err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Handle 校验工作项后执行流水线
func (h *Handler) Handle(ctx context.Context) *framework.JobResp {
	err := framework.NewPreProcessor(h.validate, h.execute).Run(ctx)

	data, _ := json.Marshal(map[string]interface{}{
		"order_id": h.job.OrderID,
		"ok":       err == nil,
	})

	switch {
	case err == nil:
		return &framework.JobResp{Action: framework.JobRespStatusSuccess, Data: data}
	case errorx.Retryable(err):
		return &framework.JobResp{Action: framework.JobRespStatusRelease, Data: data}
	default:
		return &framework.JobResp{Action: framework.JobRespStatusBury, Data: data}
	}
}

// validate 工作项必须完整：{orderId, tokenIn, tokenOut, amount}
func (h *Handler) validate(ctx context.Context) error {
	if h.job.OrderID == "" {
		return h.base.WrapError(nil, "orderId is required")
	}
	if meta := h.base.GetMeta(); meta != nil && meta.ID != "" && meta.ID != h.job.OrderID {
		return fmt.Errorf("job id %s does not match orderId %s", meta.ID, h.job.OrderID)
	}
	req := etorder.Request{TokenIn: h.job.TokenIn, TokenOut: h.job.TokenOut, Amount: h.job.Amount}
	return req.Validate()
}

func (h *Handler) execute(ctx context.Context) error {
	return h.runner.Run(ctx, h.job)
}
