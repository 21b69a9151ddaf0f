// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 plugin 定义翻译插件与宿主之间的契约。宿主负责插件生命周期、设置持久化、
HTTP 传输与本地化；插件只负责请求构造、语言映射和响应解析。

# 核心类型

  - Translator: 插件必须实现的接口（Init / Dispose / 语言映射 / Translate）
  - Context: 宿主提供给插件的能力集合（日志、HTTP、本地化、设置读写）
  - HTTPService: 单次 POST 与逐行流式 POST 两种传输原语
  - Request / Result: 单次翻译的输入与可变输出
  - Error: 带错误码的结构化错误，MapHTTPError 负责状态码映射
  - ModelCatalog: 两个插件共用的模型列表与当前选择
  - Registry: 按 ID 注册插件构造函数
*/
package plugin
