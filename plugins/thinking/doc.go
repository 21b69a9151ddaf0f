// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 thinking 提供支持"深度思考"的通用 OpenAI 风格聊天端点翻译插件
（Doubao / DeepSeek / GPT 等），以 SSE 流式返回译文。

# 概述

插件用系统提示词描述翻译任务，总是携带 thinking 开关
（{"type":"enabled"} 或 {"type":"disabled"}），并通过宿主的
StreamPost 逐行接收响应。每一行由 ParseChunk 独立解析：空行、
data: [DONE] 与无法解析的块会被跳过，不会中断整个流。

# 流式累积

StreamAccumulator 把增量写入 plugin.Result：

  - 推理内容仅在 ThinkingVisible 为 true 时输出，首个推理 token 前插入
    "🤔 [Deep Thinking]" 标题；
  - 思考阶段后的首个正文 token 前插入一次 "🚀 [Translation]" 标题，
    之后不再重复。
*/
package thinking
