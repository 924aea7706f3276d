// Package xbatch 提供带记忆化与故障隔离的批处理管道。
//
// Processor 围绕表格变换操作（见 [Operation]）提供三层能力：
//
//   - 记忆化：以 (数据指纹, 操作名, 规范化参数) 推导缓存键，
//     命中时直接返回缓存结果，避免重复执行昂贵变换
//   - 并行分批：行数超过批大小且操作可分批时，按行序切分为连续批次，
//     在有界工作池上并行执行后按原批次顺序拼接，结果与单趟执行逐行一致
//   - 熔断隔离：连续失败达到阈值后打开熔断器，冷却期内所有调用
//     以 [ErrCircuitOpen] 快速失败（操作不会被执行），冷却结束后恢复
//
// 错误语义是"响亮的"：操作失败原样上抛并计入熔断器，绝不吞掉——
// 静默返回错误或残缺的变换结果是不可接受的。缓存层故障则相反，
// 降级为未命中，不影响管道执行。
//
// 内置操作词汇表：filter（行谓词）、transform（逐列映射）、
// aggregate（分组聚合）、join（按键合并两表）、clean（缺失值与去重）。
// 未注册的操作标识以 [ErrUnknownOperation] fail-fast。
package xbatch
