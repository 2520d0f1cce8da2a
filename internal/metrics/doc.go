/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖会话、
对话轮次、语音识别、语音合成与智能体流五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 指标，按业务域分组管理。

# 主要能力

  - 会话指标：会话总数 Counter 与在线会话数 Gauge。
  - 轮次指标：轮次计数（按输入类型与结果）、轮次耗时 Histogram、
    打断计数。
  - 识别指标：上游连接计数（按结果）、转写事件计数（partial/final）。
  - 合成指标：分段计数（completed/canceled/failed/stale）、
    分段合成耗时、打断丢弃的排队任务计数。
  - 智能体流指标：回复流计数（按结果）与回复流耗时。
*/
package metrics
