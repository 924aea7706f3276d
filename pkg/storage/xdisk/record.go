package xdisk

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/s2"
)

// 记录头：3 字节魔数 + 1 字节版本 + 1 字节标志位。
const (
	recordMagic   = "TCR"
	recordVersion = 0x01
	headerLen     = 5

	flagCompressed = 0x01
)

// record 是磁盘条目的序列化形态。
// 版本号同时写入头部与载荷：头部用于快速拒绝陌生格式，
// 载荷内的副本保证 JSON 自身可独立解读。
type record struct {
	Version   int    `json:"version"`
	Key       string `json:"key"`
	Namespace string `json:"namespace"`
	Value     []byte `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
	Size      int64  `json:"size"`
}

// encodeRecord 编码记录。compress 为 true 时对 JSON 载荷做 s2 压缩。
func encodeRecord(r *record, compress bool) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("xdisk: marshal record: %w", err)
	}

	var flags byte
	if compress {
		flags |= flagCompressed
		payload = s2.Encode(nil, payload)
	}

	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, recordMagic...)
	out = append(out, recordVersion, flags)
	out = append(out, payload...)
	return out, nil
}

// decodeRecord 解码记录。
// 任何格式问题（魔数、版本、压缩流、JSON）都返回 errBadRecord 包装的错误，
// 由调用方按"损坏自愈"策略处理。
func decodeRecord(data []byte) (*record, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: truncated header", errBadRecord)
	}
	if string(data[:3]) != recordMagic {
		return nil, fmt.Errorf("%w: bad magic", errBadRecord)
	}
	if data[3] != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errBadRecord, data[3])
	}

	flags := data[4]
	payload := data[headerLen:]

	if flags&flagCompressed != 0 {
		decoded, err := s2.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", errBadRecord, err)
		}
		payload = decoded
	}

	var r record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", errBadRecord, err)
	}
	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: payload version %d", errBadRecord, r.Version)
	}
	return &r, nil
}
