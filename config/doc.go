// Package config 提供 mtplugins 宿主的配置管理。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 环境变量名由前缀与 env 标签拼接而成，例如 MTPLUGINS_CACHE_REDIS_ADDR。
package config
