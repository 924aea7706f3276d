package xbatch

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// joinOp 按键合并两表。右表索引构建跨全部输入，不分批执行
// （逐批重建右表索引的开销超过并行收益）。
//
// 参数：
//
//	right: *xtable.Table，右表
//	on:    []string，两表都必须包含的连接键列
//	how:   "inner"（默认）或 "left"
//
// 输出 schema 为左表全部列加上右表的非键列；左连接无匹配时
// 右侧补 nil。右表同键多行时逐一展开（多重匹配）。
type joinOp struct{}

func (joinOp) Name() string    { return "join" }
func (joinOp) Batchable() bool { return false }

func (joinOp) Apply(_ context.Context, t *xtable.Table, params Params) (*xtable.Table, error) {
	right, ok := params["right"].(*xtable.Table)
	if !ok || right == nil {
		return nil, fmt.Errorf("%w: right (want *xtable.Table)", ErrMissingParam)
	}

	on, err := stringsParam(params, "on")
	if err != nil {
		return nil, err
	}
	if len(on) == 0 {
		return nil, fmt.Errorf("%w: on", ErrMissingParam)
	}

	how, err := stringParam(Params{"how": paramOr(params, "how", "inner")}, "how")
	if err != nil {
		return nil, err
	}
	if how != "inner" && how != "left" {
		return nil, fmt.Errorf("%w: how %q (want inner or left)", ErrBadParam, how)
	}

	leftIdx := make([]int, 0, len(on))
	rightIdx := make([]int, 0, len(on))
	for _, col := range on {
		li, err := t.ColumnIndex(col)
		if err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
		ri, err := right.ColumnIndex(col)
		if err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
		leftIdx = append(leftIdx, li)
		rightIdx = append(rightIdx, ri)
	}

	// 右表非键列。
	var carryCols []string
	var carryIdx []int
	for i, col := range right.Columns() {
		if !slices.Contains(on, col) {
			carryCols = append(carryCols, col)
			carryIdx = append(carryIdx, i)
		}
	}

	// 右表哈希索引：键 → 行号列表。
	index := make(map[string][]int, right.NumRows())
	for i := 0; i < right.NumRows(); i++ {
		row := right.Row(i)
		key := joinKey(row, rightIdx)
		index[key] = append(index[key], i)
	}

	out, err := xtable.New(append(t.Columns(), carryCols...))
	if err != nil {
		return nil, err
	}

	for i := 0; i < t.NumRows(); i++ {
		leftRow := t.Row(i)
		matches := index[joinKey(leftRow, leftIdx)]

		if len(matches) == 0 {
			if how == "left" {
				row := append(slices.Clone(leftRow), make([]any, len(carryIdx))...)
				if err := out.AppendRow(row); err != nil {
					return nil, err
				}
			}
			continue
		}
		for _, m := range matches {
			rightRow := right.Row(m)
			row := slices.Clone(leftRow)
			for _, ci := range carryIdx {
				row = append(row, rightRow[ci])
			}
			if err := out.AppendRow(row); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// joinKey 以确定方式串接键单元格；数值归一为 float64 再格式化，
// 使 int(1) 与 float64(1) 命中同一键。
func joinKey(row []any, idx []int) string {
	var b strings.Builder
	for _, i := range idx {
		cell := row[i]
		if f, ok := toFloat(cell); ok {
			fmt.Fprintf(&b, "%v\x1f", f)
		} else {
			fmt.Fprintf(&b, "%v\x1f", cell)
		}
	}
	return b.String()
}

// paramOr 取参数或默认值。
func paramOr(params Params, key string, def any) any {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
