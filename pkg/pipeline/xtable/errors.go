package xtable

import "errors"

var (
	// ErrNoColumns 表示表格没有任何列。
	ErrNoColumns = errors.New("xtable: no columns")

	// ErrDuplicateColumn 表示列名重复。
	ErrDuplicateColumn = errors.New("xtable: duplicate column")

	// ErrColumnNotFound 表示列名不存在。
	ErrColumnNotFound = errors.New("xtable: column not found")

	// ErrRowWidth 表示行宽与列数不一致。
	ErrRowWidth = errors.New("xtable: row width mismatch")

	// ErrBadRange 表示切片区间非法。
	ErrBadRange = errors.New("xtable: bad slice range")

	// ErrSchemaMismatch 表示两张表的列 schema 不一致。
	ErrSchemaMismatch = errors.New("xtable: schema mismatch")

	// ErrBadEncoding 表示序列化数据损坏或版本不兼容。
	ErrBadEncoding = errors.New("xtable: bad encoding")
)
