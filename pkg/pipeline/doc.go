// Package pipeline 提供批处理管道相关的子包。
//
// 子包列表：
//   - xtable: 列式表格值类型，指纹 + 版本化序列化
//   - xbatch: 管道处理器，记忆化 + 并行分批 + 熔断隔离
//
// 设计原则：
//   - 操作是纯函数，分批执行与单趟执行逐行等价才可并行
//   - 管道错误响亮上抛，缓存错误静默降级
package pipeline
