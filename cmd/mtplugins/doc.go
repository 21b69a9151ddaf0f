// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 mtplugins 翻译插件宿主的命令行入口。

# 概述

cmd/mtplugins 加载内置翻译插件（qwenmt、thinking），既可以在命令行里
直接翻译和管理插件设置，也可以作为 HTTP API 服务运行。配置来自 YAML
文件与 MTPLUGINS_ 前缀的环境变量，.env 文件会在启动时自动加载。

# 子命令

  - translate: 用一个或全部插件翻译文本，流式插件边收边打印
  - models: 列出、添加、删除、选择模型
  - terms: qwenmt 术语表的列出、增删、导入、导出
  - settings: 查看（API Key 脱敏）或修改插件设置
  - langs: 列出语言及各插件的映射
  - serve: 启动 HTTP API 与 Metrics 服务器
  - health: 探测运行中的服务
  - version: 打印构建信息

# HTTP 接口

  - GET  /health: 健康检查（免鉴权）
  - GET  /version: 版本信息（免鉴权）
  - GET  /api/v1/plugins: 已加载插件
  - POST /api/v1/translate: 并发翻译，按请求顺序返回结果
  - POST /api/v1/translate/stream: SSE：增量事件、result 事件、[DONE]

中间件链依次为 Recovery、RequestID、OTelTracing、SecurityHeaders、
RequestLogger、Metrics、CORS，按配置追加 RateLimiter 与 Authenticate
（X-API-Key 或 HS256 JWT）。
*/
package main
