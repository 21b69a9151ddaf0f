/*
Package settingsstore 持久化插件设置，每个插件一条记录。

# 后端

  - file: 每个插件一个 YAML 文件（<dir>/<plugin>.yaml），原子替换写入；
  - sqlite / postgres / mysql: 通过 GORM 存储 JSON 文本，按插件 ID 主键 upsert。

Load 在记录不存在时返回 found=false 且不修改目标值，
调用方据此保留默认设置。
*/
package settingsstore
