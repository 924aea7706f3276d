// Package xdisk 提供基于文件系统的持久化缓存层（磁盘 Tier）。
//
// # 磁盘布局
//
// 每个缓存键对应一个文件：{root}/{键前两位}/{键}.cache。
// 按键前缀分片到子目录，避免单目录下文件数量失控。
//
// # 记录格式
//
// 文件内容为带版本的二进制记录：
//
//	[3 字节魔数 "TCR"][1 字节版本][1 字节标志位][JSON 载荷]
//
// 标志位 bit0 表示载荷经过 s2 压缩（klauspost/compress）。
// 魔数或版本不匹配、载荷解码失败时，条目视为不存在；
// 启用完整性校验（默认开启）时同时删除损坏文件——损坏自愈，
// 永远不会把损坏作为错误抛给调用方。
//
// # 写入原子性
//
// Put 先写入同目录下的唯一临时文件（uuid 后缀），再 rename 到目标路径。
// 并发读者不会观测到半写文件。rename 失败（如 Windows 上的共享冲突）
// 按固定间隔重试数次（avast/retry-go）。
//
// # 多进程共享
//
// 同一缓存目录可被多个进程共享：写入基于 rename 保证原子，
// 同一键的并发写者遵循 last-write-wins 语义。这是文档化的既定行为，不是缺陷。
package xdisk
