package xbatch

import (
	"context"
	"fmt"
	"math"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// Params 是操作的命名参数集。
type Params map[string]any

// Operation 是表格变换操作的契约：纯函数，同一逻辑数据集的
// 不相交批次上必须可安全并发调用。
type Operation interface {
	// Name 返回操作标识。
	Name() string

	// Batchable 报告操作是否可按行分批并行。
	// 仅当"分批执行后拼接"与"整表单趟执行"逐行等价时才可返回 true；
	// 聚合、连接、全局去重等跨行语义的操作必须返回 false。
	Batchable() bool

	// Apply 执行变换，返回新表，不得修改输入。
	Apply(ctx context.Context, t *xtable.Table, params Params) (*xtable.Table, error)
}

// builtinOperations 返回内置操作词汇表。
func builtinOperations() []Operation {
	return []Operation{
		filterOp{},
		transformOp{},
		aggregateOp{},
		joinOp{},
		cleanOp{},
	}
}

// ===== 参数取值辅助 =====

// stringParam 取必需的字符串参数。
func stringParam(params Params, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrBadParam, key, v)
	}
	return s, nil
}

// boolParam 取可选的布尔参数，缺省为 false。
func boolParam(params Params, key string) (bool, error) {
	v, ok := params[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T, want bool", ErrBadParam, key, v)
	}
	return b, nil
}

// mapParam 取可选的 map[string]any 参数。
func mapParam(params Params, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, want map[string]any", ErrBadParam, key, v)
	}
	return m, nil
}

// stringsParam 取可选的字符串列表参数，容忍 []any 形式（JSON 解码产物）。
func stringsParam(params Params, key string) ([]string, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s element is %T, want string", ErrBadParam, key, e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T, want []string", ErrBadParam, key, v)
	}
}

// ===== 单元格取值辅助 =====

// toFloat 将数值型单元格归一到 float64。
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// isMissing 报告单元格是否视为缺失（nil 或 NaN）。
func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := toFloat(v); ok {
		return math.IsNaN(f)
	}
	return false
}
