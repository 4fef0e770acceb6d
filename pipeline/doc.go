// Package pipeline 定义一次推荐重算的执行模型。
//
// 设计要点：
//   - Pipeline-first：重算由 Node 串联（Recall → Filter → ReRank），每个阶段可以单独测试和替换
//   - Labels-first：召回理由等信息作为 label 附着在 core.Item 上随链路传递，最终写入推荐结果
//   - 全有或全无：任一 Node 返回错误时整条 Pipeline 失败，调用方保留上一次的结果
package pipeline
