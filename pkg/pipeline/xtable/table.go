package xtable

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
)

// Table 是列式表格：列名定义 schema，行为等宽的 []any 单元格。
// 必须通过 [New] 或 [FromRows] 创建。Table 本身不做并发控制，
// 管道以"禁写共享、按行切片"的方式并行消费（见 Slice/Concat）。
type Table struct {
	cols  []string
	index map[string]int
	rows  [][]any
}

// New 创建只有 schema 的空表。
func New(cols []string) (*Table, error) {
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}

	index := make(map[string]int, len(cols))
	for i, name := range cols {
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		index[name] = i
	}
	return &Table{
		cols:  slices.Clone(cols),
		index: index,
		rows:  make([][]any, 0),
	}, nil
}

// FromRows 从列名与行数据创建表。行会被逐一校验宽度并复制。
func FromRows(cols []string, rows [][]any) (*Table, error) {
	t, err := New(cols)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Columns 返回列名副本。
func (t *Table) Columns() []string {
	return slices.Clone(t.cols)
}

// NumCols 返回列数。
func (t *Table) NumCols() int {
	return len(t.cols)
}

// NumRows 返回行数。
func (t *Table) NumRows() int {
	return len(t.rows)
}

// ColumnIndex 返回列下标。
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return i, nil
}

// HasColumn 报告列是否存在。
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow 追加一行。行宽必须等于列数；单元格被复制。
func (t *Table) AppendRow(row []any) error {
	if len(row) != len(t.cols) {
		return fmt.Errorf("%w: got %d cells, want %d", ErrRowWidth, len(row), len(t.cols))
	}
	t.rows = append(t.rows, slices.Clone(row))
	return nil
}

// Row 返回第 i 行的副本。越界时返回 nil。
func (t *Table) Row(i int) []any {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return slices.Clone(t.rows[i])
}

// Cell 返回 (行, 列名) 处的单元格。
func (t *Table) Cell(i int, col string) (any, error) {
	j, err := t.ColumnIndex(col)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrBadRange, i, len(t.rows))
	}
	return t.rows[i][j], nil
}

// Slice 返回行区间 [lo, hi) 的新表，保持行序，schema 共享语义上等价。
func (t *Table) Slice(lo, hi int) (*Table, error) {
	if lo < 0 || hi < lo || hi > len(t.rows) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrBadRange, lo, hi, len(t.rows))
	}

	out, _ := New(t.cols)
	for _, row := range t.rows[lo:hi] {
		out.rows = append(out.rows, slices.Clone(row))
	}
	return out, nil
}

// Clone 返回深拷贝（单元格按值复制，引用类型单元格共享底层对象）。
func (t *Table) Clone() *Table {
	out, _ := t.Slice(0, len(t.rows))
	return out
}

// Concat 按给定顺序拼接多张同 schema 的表，保持行序。
// 至少需要一张表；schema 不一致返回 ErrSchemaMismatch。
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, ErrNoColumns
	}

	out := tables[0].Clone()
	for _, t := range tables[1:] {
		if !slices.Equal(out.cols, t.cols) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrSchemaMismatch, out.cols, t.cols)
		}
		for _, row := range t.rows {
			out.rows = append(out.rows, slices.Clone(row))
		}
	}
	return out, nil
}

// Equal 报告两张表 schema 与所有单元格是否逐一相等。
func (t *Table) Equal(o *Table) bool {
	if o == nil || !slices.Equal(t.cols, o.cols) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !reflect.DeepEqual(t.rows[i][j], o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// SizeBytes 返回结构化的内存占用估算，供缓存做预算核算。
func (t *Table) SizeBytes() int64 {
	// 切片头与 map 的固定开销。
	size := int64(64)
	for _, name := range t.cols {
		size += int64(len(name)) + 16
	}
	for _, row := range t.rows {
		size += 24 // 行切片头
		for _, cell := range row {
			size += cellSize(cell)
		}
	}
	return size
}

// cellSize 估算单个单元格的占用：接口头 16 字节加上值本体。
func cellSize(v any) int64 {
	const iface = 16
	switch x := v.(type) {
	case nil:
		return iface
	case string:
		return iface + int64(len(x)) + 16
	case []byte:
		return iface + int64(len(x)) + 24
	case bool:
		return iface + 1
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return iface + 8
	default:
		// 不透明类型的保守兜底估算。
		return iface + 48
	}
}

// tablePayload 是 JSON 表示。
type tablePayload struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// MarshalJSON 实现 json.Marshaler。
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tablePayload{Columns: t.cols, Rows: t.rows})
}

// UnmarshalJSON 实现 json.Unmarshaler。
// 注意 JSON 数字一律解码为 float64。
func (t *Table) UnmarshalJSON(data []byte) error {
	var p tablePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("xtable: unmarshal: %w", err)
	}

	parsed, err := FromRows(p.Columns, p.Rows)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
