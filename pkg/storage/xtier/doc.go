// Package xtier 提供统一的分层缓存门面：内存层 + 可选磁盘层。
//
// # 核心组件
//
//   - Cache：统一门面，提供 Get/Set/Delete/Exists/Clear/RefreshTTL，
//     支持 namespace 隔离与层级选择（仅内存 / 仅磁盘 / 双层）
//   - Registry：显式的命名缓存注册表，进程启动时构造一次并注入各消费方，
//     取代模块级单例；Close 时将驻留条目批量落盘
//   - Metrics：命中/未命中/淘汰/错误计数与滚动读写延迟采样
//
// # 读路径
//
// Get 先查内存层（命中记 hit/memory）；未命中再查磁盘层，
// 磁盘命中时按条目原有过期时间提升（promote）进内存层（记 hit/disk），
// 摊薄后续重复访问的磁盘开销；两层都未命中记 miss。
// 每次 Get/Set 都会按配置间隔触发一次过期扫描（见 scanner.go）。
//
// # 错误语义
//
// 容量与存储故障（磁盘读写失败、损坏）记日志、计数并自愈，
// 对调用方统一表现为缓存未命中；Set 以返回值报告成败，不抛错误。
//
// # 值的序列化
//
// 门面以 []byte 为原生值类型。任意类型的值通过显式的 [Codec]
// 序列化契约读写（SetValue/GetValue）；大小估算优先使用 [Sizeable]
// 能力，回退到编码后长度。
package xtier
