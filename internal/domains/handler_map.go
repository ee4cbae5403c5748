package domains

import (
	"swapd/internal/common/model"
	"swapd/internal/domains/handlers/swap"
	"swapd/internal/framework"
)

// NewHandlerMap 路由表（ActionType → Handler 映射）
func NewHandlerMap(runner swap.Runner) map[string]framework.HandlerFactory {
	return map[string]framework.HandlerFactory{
		model.ActionSwapOrder: swap.NewFactory(runner),
	}
}
