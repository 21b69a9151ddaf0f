// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 cache 为宿主提供翻译结果缓存，避免相同请求重复调用上游模型。

# 后端

  - redis：基于 go-redis，支持连接池与后台健康检查；
  - badger：嵌入式 BadgerDB，可选纯内存模式，适合单机 CLI；
  - none：不缓存。

# 键

Key 由插件 ID、模型、源/目标语言与原文计算 SHA-256，
任一参数变化都会得到不同的键。

# 错误语义

未命中返回 ErrCacheMiss，可用 IsCacheMiss 判断。
*/
package cache
