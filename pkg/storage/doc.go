// Package storage 提供分层缓存的存储子包。
//
// 子包列表：
//   - xmem: 内存层，预算约束 + LRU/LFU/FIFO 淘汰
//   - xdisk: 磁盘层，原子写入 + 损坏自愈
//   - xtier: 统一门面与命名注册表
//   - xwarm: 自适应保留与缓存预热装饰层
//
// 设计原则：
//   - 两层各自独立可测，门面只做编排
//   - 容量与存储故障降级为未命中，不向调用方抛错误
//   - 值以 []byte 为原生类型，任意类型经显式 Codec 序列化
package storage
