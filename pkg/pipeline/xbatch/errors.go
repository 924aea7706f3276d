package xbatch

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrUnknownOperation 表示操作标识未注册。配置错误，调用时 fail-fast。
	ErrUnknownOperation = errors.New("xbatch: unknown operation")

	// ErrOperationExists 表示重复注册同名操作。
	ErrOperationExists = errors.New("xbatch: operation already registered")

	// ErrNilTable 表示输入表为空指针。
	ErrNilTable = errors.New("xbatch: nil table")

	// ErrMissingParam 表示缺少必需参数。
	ErrMissingParam = errors.New("xbatch: missing parameter")

	// ErrBadParam 表示参数类型或取值非法。
	ErrBadParam = errors.New("xbatch: bad parameter")

	// ErrCircuitOpen 表示熔断器处于打开状态，操作未被执行。
	// 与"操作执行后失败"显式区分，调用方可据此选择退避而非告警。
	ErrCircuitOpen = errors.New("xbatch: circuit open")

	// ErrPanicInOperation 表示操作执行中发生 panic，已被恢复为错误。
	ErrPanicInOperation = errors.New("xbatch: panic in operation")
)

// IsCircuitOpen 报告错误是否由熔断器拒绝导致（操作并未执行）。
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

// RejectionError 熔断器拒绝错误的包装类型。
//
// 包装 gobreaker 的拒绝错误并实现 Retryable() 返回 false，
// 使上层重试器对熔断拒绝直接快速失败而非继续退避。
// 设计决策: Err/State 保留为导出字段，便于调用方在日志和监控中直接读取。
type RejectionError struct {
	Err   error  // 原始错误（ErrOpenState 或 ErrTooManyRequests）
	State string // 拒绝发生时的熔断器状态名
}

// Error 实现 error 接口。
func (e *RejectionError) Error() string {
	return fmt.Sprintf("xbatch: circuit open (state=%s): %v", e.State, e.Err)
}

// Unwrap 同时暴露 ErrCircuitOpen 哨兵和原始 gobreaker 错误，
// errors.Is 对两者均成立。
func (e *RejectionError) Unwrap() []error {
	return []error{ErrCircuitOpen, e.Err}
}

// Retryable 返回 false：熔断器拒绝说明下游已不可用，重试无意义。
func (e *RejectionError) Retryable() bool {
	return false
}

// newRejectionError 包装熔断器拒绝错误。
// 从错误类型推导状态而非查询实时 State()，避免 TOCTOU 竞态。
func newRejectionError(err error) *RejectionError {
	state := "open"
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		state = "half-open"
	}
	return &RejectionError{Err: err, State: state}
}
