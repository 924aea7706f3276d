package xbatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// aggregateOp 分组聚合。聚合跨全部行，不可分批。
//
// 参数：
//
//	group_by: []string，分组列；可为空（全表单组）
//	aggs:     map[string]any，被聚合列 → 函数名。函数取值：
//	          sum mean min max count
//
// 输出 schema 为分组列加上 "<col>_<fn>" 命名的聚合列；
// 组顺序为首次出现顺序，聚合列按列名字典序排列（确定性输出）。
type aggregateOp struct{}

func (aggregateOp) Name() string    { return "aggregate" }
func (aggregateOp) Batchable() bool { return false }

// aggSpec 是解析后的单列聚合。
type aggSpec struct {
	column string
	fn     string
	idx    int
}

// aggState 是单组单列的累积状态。
type aggState struct {
	sum   float64
	min   float64
	max   float64
	count int64
}

func (aggregateOp) Apply(_ context.Context, t *xtable.Table, params Params) (*xtable.Table, error) {
	groupBy, err := stringsParam(params, "group_by")
	if err != nil {
		return nil, err
	}
	groupIdx := make([]int, 0, len(groupBy))
	for _, col := range groupBy {
		idx, err := t.ColumnIndex(col)
		if err != nil {
			return nil, err
		}
		groupIdx = append(groupIdx, idx)
	}

	specs, err := parseAggSpecs(t, params)
	if err != nil {
		return nil, err
	}

	// 组键 → 每个聚合列的状态；groupOrder 记录首次出现顺序。
	groups := make(map[string][]aggState)
	groupRows := make(map[string][]any)
	var groupOrder []string

	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		key := groupKey(row, groupIdx)

		states, ok := groups[key]
		if !ok {
			states = make([]aggState, len(specs))
			groups[key] = states
			groupRows[key] = row
			groupOrder = append(groupOrder, key)
		}
		for s := range specs {
			cell := row[specs[s].idx]
			if isMissing(cell) {
				continue
			}
			v, ok := toFloat(cell)
			if !ok && specs[s].fn != "count" {
				return nil, fmt.Errorf("%w: aggregate %s on non-numeric cell %T",
					ErrBadParam, specs[s].fn, cell)
			}
			st := &states[s]
			if st.count == 0 || v < st.min {
				st.min = v
			}
			if st.count == 0 || v > st.max {
				st.max = v
			}
			st.sum += v
			st.count++
		}
	}

	cols := make([]string, 0, len(groupBy)+len(specs))
	cols = append(cols, groupBy...)
	for _, s := range specs {
		cols = append(cols, s.column+"_"+s.fn)
	}
	out, err := xtable.New(cols)
	if err != nil {
		return nil, err
	}

	for _, key := range groupOrder {
		row := make([]any, 0, len(cols))
		src := groupRows[key]
		for _, idx := range groupIdx {
			row = append(row, src[idx])
		}
		for s, spec := range specs {
			row = append(row, finishAgg(spec.fn, groups[key][s]))
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parseAggSpecs 解析 aggs 参数，按 (列名, 函数) 字典序排序保证确定性。
func parseAggSpecs(t *xtable.Table, params Params) ([]aggSpec, error) {
	raw, err := mapParam(params, "aggs")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: aggs", ErrMissingParam)
	}

	specs := make([]aggSpec, 0, len(raw))
	for col, v := range raw {
		idx, err := t.ColumnIndex(col)
		if err != nil {
			return nil, err
		}
		fn, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: agg for %s is %T, want string", ErrBadParam, col, v)
		}
		switch fn {
		case "sum", "mean", "min", "max", "count":
		default:
			return nil, fmt.Errorf("%w: agg fn %q", ErrBadParam, fn)
		}
		specs = append(specs, aggSpec{column: col, fn: fn, idx: idx})
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].column != specs[j].column {
			return specs[i].column < specs[j].column
		}
		return specs[i].fn < specs[j].fn
	})
	return specs, nil
}

// groupKey 以不可逆但确定的方式串接分组单元格。
func groupKey(row []any, groupIdx []int) string {
	if len(groupIdx) == 0 {
		return ""
	}
	var b strings.Builder
	for _, idx := range groupIdx {
		fmt.Fprintf(&b, "%v\x1f", row[idx])
	}
	return b.String()
}

// finishAgg 收尾单列聚合。空组的 sum/count 为 0，mean/min/max 为 nil。
func finishAgg(fn string, st aggState) any {
	switch fn {
	case "count":
		return st.count
	case "sum":
		return st.sum
	case "mean":
		if st.count == 0 {
			return nil
		}
		return st.sum / float64(st.count)
	case "min":
		if st.count == 0 {
			return nil
		}
		return st.min
	default: // max
		if st.count == 0 {
			return nil
		}
		return st.max
	}
}
