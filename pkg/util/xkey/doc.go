// Package xkey 提供缓存键派生能力：将 (namespace, 逻辑 key) 映射为定宽缓存键。
//
// # 设计理念
//
//   - 确定性：相同的 (namespace, key) 永远产生相同的缓存键
//   - 定宽输出：128 位摘要的 32 字符十六进制表示，便于按前缀做磁盘分片
//   - 非安全用途：底层使用 xxhash（非密码学哈希），仅用于键空间映射，
//     不可用于任何安全相关场景（完整性校验、签名等）
//
// # 碰撞概率
//
// 128 位摘要由两次独立域分隔的 xxhash64 拼接而成，
// 对缓存键空间而言碰撞概率可忽略不计。
//
// # 派生结果缓存
//
// Codec 内置一个小容量 LRU（hashicorp/golang-lru），
// 对热点键避免重复哈希计算。容量可通过 WithMemoSize 调整。
package xkey
