package xbatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// cleanOp 清理缺失值与重复行。全局去重跨全部行，不可分批。
//
// 参数（至少给出一项）：
//
//	drop_na:         []string 或 true。指定列（或任一列）缺失时丢弃整行
//	fill_na:         map[string]any，列 → 填充值
//	drop_duplicates: bool，按整行内容去重，保留首次出现
//
// 应用顺序固定：fill_na → drop_na → drop_duplicates。
type cleanOp struct{}

func (cleanOp) Name() string    { return "clean" }
func (cleanOp) Batchable() bool { return false }

func (cleanOp) Apply(_ context.Context, t *xtable.Table, params Params) (*xtable.Table, error) {
	fillNA, err := mapParam(params, "fill_na")
	if err != nil {
		return nil, err
	}
	fillIdx := make(map[int]any, len(fillNA))
	for col, v := range fillNA {
		idx, err := t.ColumnIndex(col)
		if err != nil {
			return nil, err
		}
		fillIdx[idx] = v
	}

	dropIdx, dropAny, err := parseDropNA(t, params)
	if err != nil {
		return nil, err
	}

	dropDup, err := boolParam(params, "drop_duplicates")
	if err != nil {
		return nil, err
	}

	if len(fillIdx) == 0 && dropIdx == nil && !dropAny && !dropDup {
		return nil, fmt.Errorf("%w: one of drop_na, fill_na, drop_duplicates", ErrMissingParam)
	}

	out, err := xtable.New(t.Columns())
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})

	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)

		for idx, v := range fillIdx {
			if isMissing(row[idx]) {
				row[idx] = v
			}
		}

		if dropAny || dropIdx != nil {
			cols := dropIdx
			if dropAny {
				cols = allIndexes(t.NumCols())
			}
			if rowHasMissing(row, cols) {
				continue
			}
		}

		if dropDup {
			key := rowKey(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parseDropNA 解析 drop_na：true 表示任一列，[]string 表示指定列。
func parseDropNA(t *xtable.Table, params Params) (idx []int, anyCol bool, err error) {
	raw, ok := params["drop_na"]
	if !ok {
		return nil, false, nil
	}
	if b, ok := raw.(bool); ok {
		return nil, b, nil
	}

	cols, err := stringsParam(params, "drop_na")
	if err != nil {
		return nil, false, err
	}
	idx = make([]int, 0, len(cols))
	for _, col := range cols {
		i, err := t.ColumnIndex(col)
		if err != nil {
			return nil, false, err
		}
		idx = append(idx, i)
	}
	return idx, false, nil
}

func allIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func rowHasMissing(row []any, idx []int) bool {
	for _, i := range idx {
		if isMissing(row[i]) {
			return true
		}
	}
	return false
}

// rowKey 以确定方式串接整行内容，用于去重；数值归一为 float64。
func rowKey(row []any) string {
	var b strings.Builder
	for _, cell := range row {
		if f, ok := toFloat(cell); ok {
			fmt.Fprintf(&b, "%v\x1f", f)
		} else {
			fmt.Fprintf(&b, "%v\x1f", cell)
		}
	}
	return b.String()
}
