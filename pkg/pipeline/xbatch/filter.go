package xbatch

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// filterOp 按行谓词过滤。逐行独立判定，可分批。
//
// 参数：
//
//	where: []any，每个元素为 map{"column","op","value"}；
//	       多个条件按 AND 组合。op 取值：
//	       eq ne gt ge lt le contains in
type filterOp struct{}

func (filterOp) Name() string    { return "filter" }
func (filterOp) Batchable() bool { return true }

// condition 是解析后的单个行谓词。
type condition struct {
	column string
	op     string
	value  any
}

func (filterOp) Apply(_ context.Context, t *xtable.Table, params Params) (*xtable.Table, error) {
	conds, err := parseConditions(t, params)
	if err != nil {
		return nil, err
	}

	out, err := xtable.New(t.Columns())
	if err != nil {
		return nil, err
	}
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		keep := true
		for _, c := range conds {
			ok, err := c.match(t, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			if err := out.AppendRow(row); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// parseConditions 解析并校验 where 参数。列名在执行前统一校验（fail-fast）。
func parseConditions(t *xtable.Table, params Params) ([]condition, error) {
	raw, ok := params["where"]
	if !ok {
		return nil, fmt.Errorf("%w: where", ErrMissingParam)
	}

	var items []any
	switch x := raw.(type) {
	case []any:
		items = x
	case []map[string]any:
		items = make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
	default:
		return nil, fmt.Errorf("%w: where is %T, want list of conditions", ErrBadParam, raw)
	}

	conds := make([]condition, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: where element is %T, want map", ErrBadParam, item)
		}
		col, err := stringParam(Params(m), "column")
		if err != nil {
			return nil, err
		}
		if !t.HasColumn(col) {
			return nil, fmt.Errorf("%w: %s", xtable.ErrColumnNotFound, col)
		}
		op, err := stringParam(Params(m), "op")
		if err != nil {
			return nil, err
		}
		if !validFilterOp(op) {
			return nil, fmt.Errorf("%w: filter op %q", ErrBadParam, op)
		}
		conds = append(conds, condition{column: col, op: op, value: m["value"]})
	}
	return conds, nil
}

func validFilterOp(op string) bool {
	switch op {
	case "eq", "ne", "gt", "ge", "lt", "le", "contains", "in":
		return true
	default:
		return false
	}
}

// match 对单行求值。
func (c condition) match(t *xtable.Table, row []any) (bool, error) {
	idx, err := t.ColumnIndex(c.column)
	if err != nil {
		return false, err
	}
	cell := row[idx]

	switch c.op {
	case "eq":
		return cellEqual(cell, c.value), nil
	case "ne":
		return !cellEqual(cell, c.value), nil
	case "gt", "ge", "lt", "le":
		if isMissing(cell) {
			return false, nil
		}
		a, aok := toFloat(cell)
		b, bok := toFloat(c.value)
		if !aok || !bok {
			return false, fmt.Errorf("%w: %s requires numeric operands", ErrBadParam, c.op)
		}
		switch c.op {
		case "gt":
			return a > b, nil
		case "ge":
			return a >= b, nil
		case "lt":
			return a < b, nil
		default:
			return a <= b, nil
		}
	case "contains":
		if isMissing(cell) {
			return false, nil
		}
		s, sok := cell.(string)
		sub, subok := c.value.(string)
		if !sok || !subok {
			return false, fmt.Errorf("%w: contains requires string operands", ErrBadParam)
		}
		return strings.Contains(s, sub), nil
	case "in":
		set, ok := c.value.([]any)
		if !ok {
			return false, fmt.Errorf("%w: in requires a list value", ErrBadParam)
		}
		for _, candidate := range set {
			if cellEqual(cell, candidate) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: filter op %q", ErrBadParam, c.op)
	}
}

// cellEqual 比较单元格：数值跨类型按值比较，其余深比较。
func cellEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
