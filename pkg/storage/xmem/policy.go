package xmem

import "fmt"

// Policy 表示淘汰策略。
type Policy string

// 支持的淘汰策略。
const (
	// PolicyLRU 淘汰最近最少访问的条目（按最近访问时间升序）。
	PolicyLRU Policy = "lru"

	// PolicyLFU 淘汰访问频率最低的条目（按访问频率升序）。
	PolicyLFU Policy = "lfu"

	// PolicyFIFO 淘汰最早创建的条目（按创建时间升序）。
	PolicyFIFO Policy = "fifo"
)

// ParsePolicy 解析策略名。
// 未知名称返回 ErrInvalidPolicy，不会静默回退到默认策略。
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PolicyLRU, PolicyLFU, PolicyFIFO:
		return Policy(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}

// valid 报告策略是否为已知值。
func (p Policy) valid() bool {
	switch p {
	case PolicyLRU, PolicyLFU, PolicyFIFO:
		return true
	default:
		return false
	}
}
