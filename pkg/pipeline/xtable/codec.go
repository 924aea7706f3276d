package xtable

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
)

// 序列化格式：3 字节魔数 + 1 字节版本 + s2 压缩的 JSON 载荷。
const (
	tableMagic   = "TBL"
	tableVersion = byte(0x01)
	headerLen    = 4
)

// Encode 序列化表格。输出带魔数与版本号，载荷 s2 压缩。
func (t *Table) Encode() ([]byte, error) {
	payload, err := t.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("xtable: encode: %w", err)
	}

	compressed := s2.Encode(nil, payload)
	out := make([]byte, 0, headerLen+len(compressed))
	out = append(out, tableMagic...)
	out = append(out, tableVersion)
	return append(out, compressed...), nil
}

// Decode 反序列化表格。魔数、版本或载荷不符时返回 ErrBadEncoding，
// 调用方应将其视为"值不可用"而非致命错误。
func Decode(data []byte) (*Table, error) {
	if len(data) < headerLen || string(data[:3]) != tableMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadEncoding)
	}
	if data[3] != tableVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadEncoding, data[3])
	}

	payload, err := s2.Decode(nil, data[headerLen:])
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrBadEncoding, err)
	}

	var t Table
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return &t, nil
}

// Fingerprint 返回表格内容的 64 位摘要（16 位十六进制字符串）。
// 流式覆盖 schema 与全部单元格：列名、列序、行数或任一单元格的变化
// 都会改变指纹。非加密摘要，仅用于缓存键推导。
func (t *Table) Fingerprint() string {
	d := xxhash.New()

	var buf [8]byte
	writeInt := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		_, _ = d.Write(buf[:])
	}

	writeInt(len(t.cols))
	for _, name := range t.cols {
		writeInt(len(name))
		_, _ = d.WriteString(name)
	}

	writeInt(len(t.rows))
	for _, row := range t.rows {
		for _, cell := range row {
			// JSON 编码作为单元格的规范化字节表示（map 键有序）。
			b, err := json.Marshal(cell)
			if err != nil {
				b = []byte(fmt.Sprintf("!%T", cell))
			}
			writeInt(len(b))
			_, _ = d.Write(b)
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
