/*
包 voice 实现实时语音对话的会话编排：每个 WebSocket 连接对应
一个会话，音频或文本输入触发一轮智能体对话，回复以文本增量
和合成语音分段的形式流式推回客户端。

# 概述

会话的核心是轮次（turn）模型：每轮对话有严格递增的 turn id；
新的用户输入总是先打断上一轮（清空分句缓冲、排空合成队列、
取消进行中的合成任务并等待其退出、强制释放排空等待），再开启
新一轮。带旧 turn id 的任何排队或进行中任务都被视为过期丢弃。

# 核心类型

  - Gateway：HTTP Handler，接受 WebSocket 连接并为每个连接
    运行一个 Session。
  - Session：单连接会话编排器，持有分句器、合成队列、合成
    工作协程与上游识别流。
  - Recognizer / Synthesizer / Replier：三个上游接口，分别
    对应流式语音识别、流式语音合成与智能体回复流。

# 上游接口约定

三个接口的调用都接受 context.Context；取消 context 必须使
对应的流尽快结束。实现方通过关闭事件通道表示流结束。
*/
package voice
