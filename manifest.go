package dao

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/tokmz/dao/pkg/ws"
)

// HandlerSet 清单中按名引用的处理函数登记表
type HandlerSet struct {
	// Handlers 名字 → HTTP 处理函数
	Handlers map[string]HandlerFunc

	// Middleware 名字 → 中间件
	Middleware map[string]MiddlewareFunc

	// Sockets 名字 → WebSocket 处理函数
	Sockets map[string]ws.Handler
}

// httpMethodKeys 清单中视作路由叶子的方法键
var httpMethodKeys = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT",
	"delete": "DELETE", "patch": "PATCH", "head": "HEAD", "options": "OPTIONS",
}

// socketKey 清单中注册 WebSocket 路由的约定键
const socketKey = "socket"

// LoadManifest 从 YAML 清单构建路由树
// 方法键挂接叶子（值为处理函数名或带选项的映射），socket 键挂接
// WebSocket 叶子，其余键作为嵌套路径段继续下钻：
//
//	api:
//	  users:
//	    get: listUsers
//	    post:
//	      handler: createUser
//	      name: createUser
//	      middleware: [auth]
//	    ":id(\\d+)":
//	      get: getUser
//	  chat:
//	    socket: chatHandler
//
// 按有序映射解码，同级键严格按文档顺序注册；同级模式重叠时
// 先写者先匹配，与代码注册的先后语义一致。
// 处理函数与中间件按名在 reg 中解析，未登记的名字报错
func LoadManifest(data []byte, reg HandlerSet) (*PathNode, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parse route manifest: %w", err)
	}
	root := Tree()
	if doc == nil {
		return root, nil
	}
	top, ok := doc.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("route manifest: top level must be a mapping")
	}
	if err := loadManifestNode(root, top, reg, ""); err != nil {
		return nil, err
	}
	return root, nil
}

func loadManifestNode(n *PathNode, doc yaml.MapSlice, reg HandlerSet, at string) error {
	for _, item := range doc {
		key, ok := item.Key.(string)
		if !ok {
			return fmt.Errorf("manifest %s: non-string key %v", at, item.Key)
		}
		lower := strings.ToLower(key)

		if method, ok := httpMethodKeys[lower]; ok {
			if err := loadManifestLeaf(n, method, item.Value, reg, at); err != nil {
				return err
			}
			continue
		}

		if lower == socketKey {
			name, ok := item.Value.(string)
			if !ok {
				return fmt.Errorf("manifest %s: socket value must be a handler name", at)
			}
			handler, ok := reg.Sockets[name]
			if !ok {
				return fmt.Errorf("manifest %s: unknown socket handler %q", at, name)
			}
			n.Socket(handler)
			continue
		}

		// 其余键为嵌套路径段
		sub, ok := item.Value.(yaml.MapSlice)
		if !ok {
			return fmt.Errorf("manifest %s/%s: expected nested mapping", at, key)
		}
		child := n.Child(key, nil)
		if err := loadManifestNode(child, sub, reg, at+"/"+key); err != nil {
			return err
		}
	}
	return nil
}

// loadManifestLeaf 解析一个方法叶子
// 值为字符串时即处理函数名；为映射时支持
// {handler, path, name, version, middleware}
func loadManifestLeaf(n *PathNode, method string, value any, reg HandlerSet, at string) error {
	switch v := value.(type) {
	case string:
		handler, ok := reg.Handlers[v]
		if !ok {
			return fmt.Errorf("manifest %s: unknown handler %q", at, v)
		}
		n.Handle(method, handler)
		return nil

	case yaml.MapSlice:
		fields := make(map[string]any, len(v))
		for _, f := range v {
			if k, ok := f.Key.(string); ok {
				fields[strings.ToLower(k)] = f.Value
			}
		}
		name, _ := fields["handler"].(string)
		if name == "" {
			return fmt.Errorf("manifest %s %s: missing handler", at, method)
		}
		handler, ok := reg.Handlers[name]
		if !ok {
			return fmt.Errorf("manifest %s: unknown handler %q", at, name)
		}

		var opts []RouteOption
		if routeName, _ := fields["name"].(string); routeName != "" {
			opts = append(opts, WithName(routeName))
		}
		if version, _ := fields["version"].(string); version != "" {
			opts = append(opts, WithVersion(version))
		}
		if rawMW, ok := fields["middleware"].([]any); ok {
			var chain []MiddlewareFunc
			for _, item := range rawMW {
				mwName, _ := item.(string)
				mw, ok := reg.Middleware[mwName]
				if !ok {
					return fmt.Errorf("manifest %s: unknown middleware %q", at, mwName)
				}
				chain = append(chain, mw)
			}
			opts = append(opts, WithMiddleware(chain...))
		}

		if extra, _ := fields["path"].(string); extra != "" {
			n.HandleAt(method, extra, handler, opts...)
		} else {
			n.Handle(method, handler, opts...)
		}
		return nil

	default:
		return fmt.Errorf("manifest %s %s: unsupported leaf value %T", at, method, value)
	}
}
