// Package main 启动应用程序
package main

import "github.com/yeisme/filevault/pkg/cmd"

//	@title			FileVault API
//	@version		1.0
//	@description	FileVault 是一个加密文件存储服务：文件在服务端加密落盘，支持团队配额、分享链接与完整性校验。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
