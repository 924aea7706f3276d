package xkey

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultNamespace 是未显式指定 namespace 时使用的默认分区名。
const DefaultNamespace = "default"

// KeyLen 是派生键的定宽长度（32 个十六进制字符，128 位）。
const KeyLen = 32

// 域分隔前缀，确保两次 xxhash64 相互独立。
const (
	domainLo = "tk0\x00"
	domainHi = "tk1\x00"
)

// sep 是 namespace 与 key 之间的分隔符。
// 使用不可打印字符避免 ("a:b", "c") 与 ("a", "b:c") 产生相同输入。
const sep = "\x1f"

// Derive 派生 (namespace, key) 对应的定宽缓存键。
// 纯函数，不使用任何缓存。结果为 32 字符小写十六进制。
func Derive(namespace, key string) (string, error) {
	if namespace == "" {
		return "", ErrEmptyNamespace
	}
	if key == "" {
		return "", ErrEmptyKey
	}
	return derive(namespace, key), nil
}

// derive 执行实际的摘要计算。调用方保证入参非空。
func derive(namespace, key string) string {
	composite := namespace + sep + key
	lo := xxhash.Sum64String(domainLo + composite)
	hi := xxhash.Sum64String(domainHi + composite)

	var buf [KeyLen]byte
	appendHex64(buf[:0], hi)
	appendHex64(buf[16:16], lo)
	return string(buf[:])
}

const hexDigits = "0123456789abcdef"

// appendHex64 将 v 以 16 个十六进制字符写入 dst（定宽，高位补零）。
// 手写展开避免 fmt.Sprintf 在热路径上的分配。
func appendHex64(dst []byte, v uint64) {
	dst = dst[:16]
	for i := 15; i >= 0; i-- {
		dst[i] = hexDigits[v&0xf]
		v >>= 4
	}
}

// =============================================================================
// 带记忆化的 Codec
// =============================================================================

// Codec 是带派生结果缓存的键派生器。
// 所有方法并发安全。零值不可用，必须通过 [NewCodec] 创建。
type Codec struct {
	memo *lru.Cache[string, string]
}

// CodecOption 定义 Codec 的可选配置函数类型。
type CodecOption func(*codecOptions)

type codecOptions struct {
	memoSize int
}

// defaultMemoSize 默认记忆化容量。
// 每个条目约占 (len(composite) + 32) 字节，4096 个条目的开销可忽略。
const defaultMemoSize = 4096

// WithMemoSize 设置派生结果缓存的容量。
// 如果 n <= 0，将忽略此设置并使用默认值。
func WithMemoSize(n int) CodecOption {
	return func(o *codecOptions) {
		if n > 0 {
			o.memoSize = n
		}
	}
}

// NewCodec 创建键派生器。
func NewCodec(opts ...CodecOption) (*Codec, error) {
	o := &codecOptions{memoSize: defaultMemoSize}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	memo, err := lru.New[string, string](o.memoSize)
	if err != nil {
		return nil, err
	}
	return &Codec{memo: memo}, nil
}

// Derive 派生缓存键，优先返回记忆化结果。
func (c *Codec) Derive(namespace, key string) (string, error) {
	if namespace == "" {
		return "", ErrEmptyNamespace
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	composite := namespace + sep + key
	if derived, ok := c.memo.Get(composite); ok {
		return derived, nil
	}

	derived := derive(namespace, key)
	c.memo.Add(composite, derived)
	return derived, nil
}

// MemoLen 返回当前记忆化条目数，用于测试和调试。
func (c *Codec) MemoLen() int {
	return c.memo.Len()
}
