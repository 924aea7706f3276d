// Package util 提供基础工具子包。
//
// 子包列表：
//   - xkey: 缓存键推导，128 位非加密摘要 + 记忆化
package util
