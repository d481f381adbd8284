package dao

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

// gzipMinSize 小于该字节数的响应不压缩，压缩头开销得不偿失
const gzipMinSize = 1024

var gzipPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(nil)
	},
}

// shouldCompress 判断本次响应是否压缩：
// 客户端声明接受 gzip、正文达到阈值、未被上游编码、
// 且内容类型可压缩
func shouldCompress(r *http.Request, h http.Header, size int) bool {
	if size < gzipMinSize {
		return false
	}
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := h.Get("Content-Type")
	return strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") ||
		strings.HasPrefix(ct, "application/xml") ||
		strings.HasPrefix(ct, "application/javascript")
}

// writeGzip 以 gzip 编码写出正文
func writeGzip(w ResponseWriter, status int, body []byte) error {
	h := w.Header()
	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	h.Add("Vary", "Accept-Encoding")
	w.WriteHeader(status)

	gz := gzipPool.Get().(*gzip.Writer)
	defer gzipPool.Put(gz)
	gz.Reset(w)
	if _, err := gz.Write(body); err != nil {
		return err
	}
	return gz.Close()
}
