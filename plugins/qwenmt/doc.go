// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 qwenmt 提供阿里巴巴通义千问机器翻译（Qwen-MT）插件，基于 DashScope 的
compatible-mode 端点，以单次 POST 获取完整译文。

# 概述

插件把宿主的语言枚举映射为 Qwen-MT 语言名，构造
translation_options（source_lang / target_lang，可选 terms 与 domains），
并从 choices[0].message.content 中提取译文。响应缺少该字段时返回
NO_RESULT 错误并附带原始响应体。

# 核心接口

  - Plugin: 实现 plugin.Translator。
  - Settings / Term: 宿主持久化的设置与术语表条目。
  - SettingsModel: 设置的唯一修改入口，每次变更都通过宿主保存。
  - ExportTerms / ImportTerms: 术语表 JSON 导入导出。

# 已知问题

语言表中 English 与 Japanese 的映射互换（English → "Japanese"），为保持与
既有部署的兼容性而保留，未做修正。
*/
package qwenmt
