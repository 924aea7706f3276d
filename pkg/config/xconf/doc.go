// Package xconf 提供 tiercache 的类型化配置：加载、校验与热更新。
//
// # 设计理念
//
//   - 类型化优先：对外暴露 [Config] 结构体而非裸的 key-value 查询，
//     所有默认值集中在 [Defaults]，所有约束集中在 [Config.Validate]
//   - 底层透传：需要读取扩展字段时可通过 [Loaded.Client] 获取 koanf 实例
//   - 显式生命周期：配置在进程启动时加载一次并注入各组件，
//     不存在 import 即生效的隐式全局状态
//
// # 支持的格式
//
// YAML（.yaml/.yml）与 JSON（.json），按文件扩展名自动检测；
// 从字节数据加载时需显式指定格式（适用于 K8s ConfigMap 等场景）。
//
// # 热更新
//
// [Watch] 基于 fsnotify 监视配置文件所在目录（而非文件本身，
// 以兼容编辑器的原子写入模式），变更经防抖后重载并回调通知。
package xconf
