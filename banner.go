package dao

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version 框架版本号
const Version = "1.0.0"

// banner ASCII Art
const banner = `
██████╗  █████╗  ██████╗    Dao 路由调度引擎
██╔══██╗██╔══██╗██╔═══██╗   声明式路由编译、调度缓存、内容协商、限流与原生 WebSocket
██║  ██║███████║██║   ██║   github: https://github.com/tokmz/dao
██████╔╝██╔══██║╚██████╔╝   open: %s
╚═════╝ ╚═╝  ╚═╝ ╚═════╝    version: %s
`

// printBanner 打印启动 banner 和路由表
func (e *Engine) printBanner(addr string) {
	out := os.Stdout

	// 拼接访问地址
	var open string
	if strings.HasPrefix(addr, ":") {
		open = "http://127.0.0.1" + addr
	} else if strings.Contains(addr, ":") {
		open = "http://" + addr
	} else {
		open = "http://127.0.0.1:" + addr
	}

	fPrint(out, banner, open, Version)
	fPrint(out, "\n")

	// 打印路由表
	routes := e.Routes()
	if len(routes) > 0 {
		printRoutes(out, routes)
		fPrint(out, "\n")
	}

	// 打印环境信息
	fPrint(out, "[Dao] Go version: %s | OS: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fPrint(out, "[Dao] Listening on %s\n", addr)
}

// methodColor 根据 HTTP 方法返回 ANSI 颜色码
func methodColor(method string) string {
	switch method {
	case "GET":
		return "\033[34m" // 蓝色
	case "POST":
		return "\033[32m" // 绿色
	case "PUT":
		return "\033[33m" // 黄色
	case "DELETE":
		return "\033[31m" // 红色
	case "PATCH":
		return "\033[36m" // 青色
	case "HEAD":
		return "\033[35m" // 紫色
	case "OPTIONS":
		return "\033[37m" // 灰色
	default:
		return "\033[0m"
	}
}

const resetColor = "\033[0m"

// printRoutes 格式化打印路由表（带颜色对齐）
func printRoutes(out io.Writer, routes []RouteInfo) {
	maxPathLen := 0
	for _, r := range routes {
		if len(r.Path) > maxPathLen {
			maxPathLen = len(r.Path)
		}
	}

	for _, r := range routes {
		suffix := ""
		if r.Name != "" {
			suffix = " (" + r.Name + ")"
		}
		if r.Version != "" {
			suffix += " [" + r.Version + "]"
		}
		fPrint(out, "[Dao] %s %-7s %s %-*s%s\n",
			methodColor(r.Method), r.Method, resetColor,
			maxPathLen, r.Path,
			suffix)
	}
}

// fPrint 打印到 writer，忽略错误（banner 输出场景）
func fPrint(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}
