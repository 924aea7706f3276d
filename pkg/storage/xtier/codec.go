package xtier

import (
	"encoding/json"
	"fmt"
)

// Codec 是值的显式序列化契约。
// 缓存不做任何隐式的通用对象序列化：每种值类型要么天然是 []byte，
// 要么由调用方选定 Codec 承担编解码责任。
type Codec interface {
	// Marshal 编码值。
	Marshal(v any) ([]byte, error)

	// Unmarshal 解码到目标。
	Unmarshal(data []byte, target any) error
}

// JSONCodec 是基于 encoding/json 的默认 Codec。
type JSONCodec struct{}

// Marshal 实现 Codec 接口。
func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("xtier: json marshal: %w", err)
	}
	return data, nil
}

// Unmarshal 实现 Codec 接口。
func (JSONCodec) Unmarshal(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("xtier: json unmarshal: %w", err)
	}
	return nil
}

// Sizeable 是值的显式大小估算能力。
// 实现此接口的类型自行报告内存占用，避免"尝试序列化再兜底"的隐式模式。
type Sizeable interface {
	// SizeBytes 返回估算的内存占用字节数。
	SizeBytes() int64
}

// EstimateSize 估算值的占用字节数：
// 字符串与字节切片按长度，实现 [Sizeable] 的类型按其自报值，
// 其余类型回退到编码后长度。
func EstimateSize(v any, encoded []byte) int64 {
	switch x := v.(type) {
	case []byte:
		return int64(len(x))
	case string:
		return int64(len(x))
	case Sizeable:
		return x.SizeBytes()
	default:
		return int64(len(encoded))
	}
}
