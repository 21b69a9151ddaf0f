// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP 接口、翻译调用、
上游请求、结果缓存与设置存储。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace 隔离。
Collector 同时实现 httpservice.Observer，可直接挂到宿主的 HTTP 服务上。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 翻译指标：按 plugin/status 统计次数与耗时，流式翻译统计增量块数。
  - 上游指标：按 host/status/stream 统计上游请求与耗时。
  - 缓存指标：按 plugin 统计命中与未命中。
  - 存储指标：连接池 Gauge 与设置读写耗时。
*/
package metrics
