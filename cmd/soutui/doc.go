/*
Package main 提供 soutui 语音网关的服务端程序入口。

# 概述

cmd/soutui 是语音网关的可执行入口，对浏览器暴露 /ws/voice
WebSocket 端点，把会话桥接到腾讯云实时识别、流式合成与
应用开发平台的对话接口。程序支持 YAML 配置文件加载、
结构化日志（zap）和 Prometheus 指标采集。

# 核心类型

  - Server          — 主服务器，组装上游客户端、网关与 HTTP 管理器
  - Middleware      — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter  — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestLogger（运维端点）
  - 就绪探测：/ready 并发检查对话端点与识别、合成域名可达性
  - 优雅关闭：信号监听 → 关闭 HTTP → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
