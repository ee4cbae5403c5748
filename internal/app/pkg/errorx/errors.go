package errorx

import (
	"errors"
	"fmt"
	"strings"
)

// 业务错误定义
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrQueueUnavailable  = errors.New("work queue unavailable")
)

// ErrorDetail 错误详情（字段级）
type ErrorDetail struct {
	Path string `json:"path"`
	Info string `json:"info"`
}

// ValidationError 提交参数校验失败，不产生任何副作用
type ValidationError struct {
	Details []ErrorDetail
}

// NewValidationError 创建校验错误
func NewValidationError(path, info string) *ValidationError {
	return &ValidationError{Details: []ErrorDetail{{Path: path, Info: info}}}
}

// Add 追加一个字段错误
func (e *ValidationError) Add(path, info string) {
	e.Details = append(e.Details, ErrorDetail{Path: path, Info: info})
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Info)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ExecutionError 报价/执行能力返回的错误，总是落到 failed 终态
type ExecutionError struct {
	Stage string
	Venue string
	Err   error
}

// Error 实现 error 接口
func (e *ExecutionError) Error() string {
	if e.Venue != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Stage, e.Venue, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsValidation 判断是否为参数校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// retryableError 基础设施故障（存储/队列不可达），允许队列重新投递
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retriable 标记为可重试错误
func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Retryable 判断错误是否可重试
func Retryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
