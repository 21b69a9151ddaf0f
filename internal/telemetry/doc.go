// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为宿主提供 TracerProvider 与 MeterProvider，并暴露统一的 Tracer。
// 遥测关闭时保持全局 noop 实现，不连接任何外部服务。
package telemetry
