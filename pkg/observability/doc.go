// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 缓存指标到 OpenTelemetry 的桥接
//
// 设计原则：
//   - 缓存核心不感知 OTel，桥接层通过快照函数拉取
//   - 遵循 OpenTelemetry 语义规范
package observability
