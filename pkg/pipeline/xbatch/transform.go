package xbatch

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// transformOp 对指定列逐格应用映射函数。逐行独立，可分批。
//
// 参数：
//
//	columns: map[string]any，列名 → 函数名。函数取值：
//	         upper lower trim abs round negate
type transformOp struct{}

func (transformOp) Name() string    { return "transform" }
func (transformOp) Batchable() bool { return true }

// cellFn 是单元格映射函数。
type cellFn func(any) (any, error)

func (transformOp) Apply(_ context.Context, t *xtable.Table, params Params) (*xtable.Table, error) {
	spec, err := mapParam(params, "columns")
	if err != nil {
		return nil, err
	}
	if len(spec) == 0 {
		return nil, fmt.Errorf("%w: columns", ErrMissingParam)
	}

	fns := make(map[int]cellFn, len(spec))
	for col, raw := range spec {
		idx, err := t.ColumnIndex(col)
		if err != nil {
			return nil, err
		}
		name, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: transform for %s is %T, want string", ErrBadParam, col, raw)
		}
		fn, err := lookupCellFn(name)
		if err != nil {
			return nil, err
		}
		fns[idx] = fn
	}

	out, err := xtable.New(t.Columns())
	if err != nil {
		return nil, err
	}
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		for idx, fn := range fns {
			mapped, err := fn(row[idx])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			row[idx] = mapped
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// lookupCellFn 解析函数名。未知函数属配置错误，fail-fast。
func lookupCellFn(name string) (cellFn, error) {
	switch name {
	case "upper":
		return stringFn(strings.ToUpper), nil
	case "lower":
		return stringFn(strings.ToLower), nil
	case "trim":
		return stringFn(strings.TrimSpace), nil
	case "abs":
		return numericFn(math.Abs), nil
	case "round":
		return numericFn(math.Round), nil
	case "negate":
		return numericFn(func(f float64) float64 { return -f }), nil
	default:
		return nil, fmt.Errorf("%w: transform fn %q", ErrBadParam, name)
	}
}

// stringFn 包装字符串函数；缺失单元格原样放行。
func stringFn(fn func(string) string) cellFn {
	return func(v any) (any, error) {
		if isMissing(v) {
			return v, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cell is %T, want string", ErrBadParam, v)
		}
		return fn(s), nil
	}
}

// numericFn 包装数值函数；缺失单元格原样放行，结果归一为 float64。
func numericFn(fn func(float64) float64) cellFn {
	return func(v any) (any, error) {
		if isMissing(v) {
			return v, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: cell is %T, want numeric", ErrBadParam, v)
		}
		return fn(f), nil
	}
}
