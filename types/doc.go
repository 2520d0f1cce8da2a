/*
Package types 提供 soutui 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 voice、asr、tts、
adp 等上层模块提供统一的错误契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - 错误构造链：NewError + WithCause / WithRetryable / WithProvider / WithHTTPStatus
  - 上游归因：Provider 字段标记错误来自哪个腾讯云服务
*/
package types
