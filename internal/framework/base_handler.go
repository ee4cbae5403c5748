package framework

import (
	"context"
	"encoding/json"
	"fmt"

	"swapd/internal/common/model"
)

// BaseHandler 抽象基类
// 提供基础设施方法，不包含业务流程控制
type BaseHandler struct {
	msg        *Message        // 原始消息
	meta       *model.Meta     // Job 元信息
	bizPayload json.RawMessage // 业务数据（job.Payload.Data.Data 部分）
}

// NewBaseHandler 创建基类实例
func NewBaseHandler(msg *Message) *BaseHandler {
	return &BaseHandler{msg: msg}
}

// ParseJob 解析标准 Job 结构
// 将解析后的数据存储到 BaseHandler 成员变量中
func (b *BaseHandler) ParseJob(ctx context.Context) error {
	var job model.Job
	if err := json.Unmarshal(b.msg.Data, &job); err != nil {
		return b.WrapError(err, "unmarshal job failed")
	}

	if job.Payload == nil || job.Payload.Data == nil {
		return b.WrapError(nil, "invalid job structure")
	}

	data := job.Payload.Data
	b.meta = &model.Meta{
		RequestID:  data.RequestID,
		ActionType: data.ActionType,
		ID:         data.ID,
	}
	b.bizPayload = data.Data

	return nil
}

// DecodePayload 将业务数据解码到 v
func (b *BaseHandler) DecodePayload(v interface{}) error {
	if len(b.bizPayload) == 0 {
		return b.WrapError(nil, "empty business payload")
	}
	if err := json.Unmarshal(b.bizPayload, v); err != nil {
		return b.WrapError(err, "unmarshal business payload failed")
	}
	return nil
}

// WrapError 统一包装错误
func (b *BaseHandler) WrapError(err error, msg string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// GetMeta 获取 meta
func (b *BaseHandler) GetMeta() *model.Meta {
	return b.meta
}

// GetMessage 获取原始消息
func (b *BaseHandler) GetMessage() *Message {
	return b.msg
}
