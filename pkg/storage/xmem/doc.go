// Package xmem 提供带字节预算的进程内缓存层（内存 Tier）。
//
// # 设计理念
//
//   - 字节预算硬约束：任何一次 Insert 完成后，占用字节数不超过配置的预算，
//     空间不足时先按策略淘汰再写入
//   - 可插拔淘汰策略：LRU（按最近访问时间）、LFU（按访问频率）、FIFO（按创建时间）
//   - 惰性过期：Get 命中已过期条目时就地删除并返回未命中，
//     全量清理由上层的过期扫描器按间隔触发 Sweep
//
// # 并发模型
//
// 条目表、占用字节计数和访问统计表由单把互斥锁守护，
// 三者的更新对外表现为一个原子单元，不存在可观测的中间状态。
// 锁按 key-hash 分片是未来的优化方向，当前实现以简单性优先。
//
// # 访问统计
//
// 每个 key 关联一条访问统计（最近访问时间 + 访问频率），
// 在首次访问时创建，随条目删除、过期或淘汰一并清除。
// 统计既服务于 LRU/LFU 淘汰选择，也供上层的自适应保留层查询。
package xmem
