package xtable

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, err := FromRows(
		[]string{"id", "name", "score"},
		[][]any{
			{1, "alice", 90.5},
			{2, "bob", 72.0},
			{3, "carol", 88.0},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoColumns)

	_, err = New([]string{"a", "b", "a"})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestFromRows_WidthValidation(t *testing.T) {
	_, err := FromRows([]string{"a", "b"}, [][]any{{1}})
	assert.ErrorIs(t, err, ErrRowWidth)
}

func TestTable_Accessors(t *testing.T) {
	tbl := sample(t)

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, 3, tbl.NumCols())
	assert.Equal(t, []string{"id", "name", "score"}, tbl.Columns())
	assert.True(t, tbl.HasColumn("name"))
	assert.False(t, tbl.HasColumn("age"))

	cell, err := tbl.Cell(1, "name")
	require.NoError(t, err)
	assert.Equal(t, "bob", cell)

	_, err = tbl.Cell(0, "age")
	assert.ErrorIs(t, err, ErrColumnNotFound)
	_, err = tbl.Cell(9, "name")
	assert.ErrorIs(t, err, ErrBadRange)

	assert.Equal(t, []any{1, "alice", 90.5}, tbl.Row(0))
	assert.Nil(t, tbl.Row(-1))
	assert.Nil(t, tbl.Row(3))
}

func TestTable_RowIsCopy(t *testing.T) {
	tbl := sample(t)

	row := tbl.Row(0)
	row[1] = "mallory"

	cell, err := tbl.Cell(0, "name")
	require.NoError(t, err)
	assert.Equal(t, "alice", cell)
}

func TestTable_SliceConcatRoundTrip(t *testing.T) {
	tbl := sample(t)

	head, err := tbl.Slice(0, 2)
	require.NoError(t, err)
	tail, err := tbl.Slice(2, 3)
	require.NoError(t, err)

	joined, err := Concat(head, tail)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(joined), "slice+concat must preserve row order")

	empty, err := tbl.Slice(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumRows())

	_, err = tbl.Slice(2, 1)
	assert.ErrorIs(t, err, ErrBadRange)
	_, err = tbl.Slice(0, 4)
	assert.ErrorIs(t, err, ErrBadRange)
}

func TestConcat_SchemaMismatch(t *testing.T) {
	a, err := New([]string{"x"})
	require.NoError(t, err)
	b, err := New([]string{"y"})
	require.NoError(t, err)

	_, err = Concat(a, b)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Concat()
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestTable_Equal(t *testing.T) {
	a := sample(t)
	b := sample(t)
	assert.True(t, a.Equal(b))

	require.NoError(t, b.AppendRow([]any{4, "dan", 50.0}))
	assert.False(t, a.Equal(b))

	assert.False(t, a.Equal(nil))
}

func TestTable_Clone(t *testing.T) {
	a := sample(t)
	b := a.Clone()
	require.True(t, a.Equal(b))

	require.NoError(t, b.AppendRow([]any{4, "dan", 50.0}))
	assert.Equal(t, 3, a.NumRows())
}

func TestTable_SizeBytes(t *testing.T) {
	tbl := sample(t)
	small := tbl.SizeBytes()
	assert.Positive(t, small)

	for i := 0; i < 100; i++ {
		require.NoError(t, tbl.AppendRow([]any{i, "name", 1.0}))
	}
	assert.Greater(t, tbl.SizeBytes(), small)
}

func TestTable_JSONRoundTrip(t *testing.T) {
	tbl, err := FromRows(
		[]string{"id", "name"},
		[][]any{{1.0, "alice"}, {2.0, "bob"}},
	)
	require.NoError(t, err)

	data, err := json.Marshal(tbl)
	require.NoError(t, err)

	var back Table
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, tbl.Equal(&back))
}

func TestTable_EncodeDecodeRoundTrip(t *testing.T) {
	tbl, err := FromRows(
		[]string{"id", "name"},
		[][]any{{1.0, "alice"}, {2.0, "bob"}},
	)
	require.NoError(t, err)

	data, err := tbl.Encode()
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(back))
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("TB")},
		{"bad magic", []byte("XYZ\x01payload")},
		{"unknown version", []byte("TBL\x63payload")},
		{"garbage payload", []byte("TBL\x01\xff\xff\xff\xff")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrBadEncoding)
		})
	}
}

func TestFingerprint_Determinism(t *testing.T) {
	a := sample(t)
	b := sample(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

func TestFingerprint_Sensitivity(t *testing.T) {
	base := sample(t)

	moreRows := sample(t)
	require.NoError(t, moreRows.AppendRow([]any{4, "dan", 50.0}))
	assert.NotEqual(t, base.Fingerprint(), moreRows.Fingerprint())

	renamed, err := FromRows(
		[]string{"id", "fullname", "score"},
		[][]any{{1, "alice", 90.5}, {2, "bob", 72.0}, {3, "carol", 88.0}},
	)
	require.NoError(t, err)
	assert.NotEqual(t, base.Fingerprint(), renamed.Fingerprint())

	edited := sample(t)
	edited.rows[0][1] = "alicia"
	assert.NotEqual(t, base.Fingerprint(), edited.Fingerprint())
}

func BenchmarkFingerprint(b *testing.B) {
	tbl, err := New([]string{"id", "name", "score"})
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if err := tbl.AppendRow([]any{i, fmt.Sprintf("user-%d", i), float64(i)}); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	for b.Loop() {
		tbl.Fingerprint()
	}
}
