// Package xwarm 在分层缓存之上提供自适应保留能力。
//
// Layer 是 [xtier.Cache] 的可选装饰层，从两个独立信号推导条目的
// 有效 TTL：
//
//   - 质量分（quality ∈ [0,1]）：ttl *= clamp(1+quality, 1.0, 2.0)
//   - 历史访问频次：ttl *= clamp(1+0.1*n, 1.0, 3.0)
//
// 两个加成相互独立、乘法叠加，可分别开关。
//
// 此外提供机会式缓存预热：TrackAccess 记录访问，累计达到阈值的键
// 成为预热候选；Warm 按最小间隔对候选做一次重读，迫使磁盘条目
// 提升回内存层，延长热数据驻留。
package xwarm
