// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 host 是插件契约的参考宿主实现，供 CLI、HTTP API 与测试使用。

# 职责

  - 生命周期：按注册表创建插件，Init 时注入独立的 plugin.Context，Close 时逆序 Dispose。
  - 插件上下文：日志、共享 HTTP 服务、本地化目录、设置存储。
  - 调度：生成请求 ID、开启 OTel span、查询结果缓存、记录指标，
    把插件返回的错误转换为失败结果并只记录一次日志。
  - 聚合：TranslateAll 用 errgroup 并发调用多个插件，每个插件拥有独立的 Result。
*/
package host
