// Package xtable 提供批处理管道的列式表格值类型。
//
// Table 是不可变倾向的行列结构：列名定义 schema，行为 []any 单元格。
// 面向缓存与管道的三个核心能力：
//
//   - Fingerprint：对 schema 与全部单元格做 xxhash 流式摘要，
//     内容相同的表指纹相同，任何单元格变化都会改变指纹
//   - Encode/Decode：带魔数与版本号的 s2 压缩序列化，
//     版本不兼容时视为不可用而非崩溃
//   - SizeBytes：结构化的内存占用估算，供缓存做预算核算
//
// Slice 与 Concat 保证行序：Concat(t.Slice(0,k), t.Slice(k,n))
// 与原表逐行相等，这是管道并行分批的基础。
package xtable
