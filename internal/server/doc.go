// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 server 管理 HTTP 服务器的生命周期：非阻塞启动、随 context 结束的
优雅关闭，以及异步错误上报。

宿主用它同时承载翻译 API 与独立的 /metrics 端口，两个 Manager
共享同一个 context，任一出错都会让 Run 返回。
*/
package server
