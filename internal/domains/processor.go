package domains

import (
	"context"
	"time"

	"github.com/google/uuid"

	"swapd/internal/app/pkg/logger"
	"swapd/internal/framework"
)

// GetProcess 返回核心处理函数（注入到 Processor）
func GetProcess(log logger.Logger, handlers map[string]framework.HandlerFactory) framework.Proc {
	return func(ctx context.Context, msg *framework.Message) *framework.JobResp {
		startTime := time.Now()

		// 1. 解析 Job
		base := framework.NewBaseHandler(msg)
		if err := base.ParseJob(ctx); err != nil {
			log.Errorf(ctx, "[GetProcess] parseJob failed: %v", err)
			return &framework.JobResp{Action: framework.JobRespStatusBury}
		}
		meta := base.GetMeta()

		// RequestID 为空则生成一个
		if meta.RequestID == "" {
			meta.RequestID = uuid.New().String()
		}

		// 2. 注入 TraceID
		ctx = logger.WithTraceID(ctx, meta.RequestID)
		ctx = logger.WithOrderID(ctx, meta.ID)

		log.Infof(ctx, "[GetProcess] Processing job: action_type=%s, id=%s, attempts=%d",
			meta.ActionType, meta.ID, msg.Attempts)

		// 3. 从路由表获取 Handler
		factory, ok := handlers[meta.ActionType]
		if !ok {
			log.Errorf(ctx, "[GetProcess] handler not found for action_type: %s", meta.ActionType)
			return &framework.JobResp{Action: framework.JobRespStatusBury}
		}

		// 4. 调用 Handler（捕获 panic）
		var resp *framework.JobResp
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf(ctx, "[GetProcess] handler panic: %v", r)
					resp = &framework.JobResp{Action: framework.JobRespStatusBury}
				}
			}()

			handler, err := factory(ctx, base)
			if err != nil {
				log.Errorf(ctx, "[GetProcess] handler creation failed: %v", err)
				resp = &framework.JobResp{Action: framework.JobRespStatusBury}
				return
			}

			resp = handler.Handle(ctx)
		}()

		// 5. 记录处理时长
		log.Infof(ctx, "[GetProcess] Processing complete: action=%s, duration=%v", resp.Action, time.Since(startTime))

		return resp
	}
}
