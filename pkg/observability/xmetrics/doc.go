// Package xmetrics 把分层缓存的指标快照桥接到 OpenTelemetry。
//
// Bridge 以可观测（observable）仪表注册缓存的计数器与占用指标，
// 采集周期由 MeterProvider 的 Reader 决定；缓存本身不感知 OTel，
// 只通过 [SnapshotFunc] 提供快照。进程关停时调用 Close 注销回调。
package xmetrics
