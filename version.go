package dao

import (
	"net/http"
	"regexp"
	"strings"
)

// versionPrefixRe URL 版本前缀，如 /v2/users
var versionPrefixRe = regexp.MustCompile(`^/(v\d+)(/.*)?$`)

// normalizeVersion 规范化版本标识：纯数字补 v 前缀，统一小写
func normalizeVersion(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// resolveVersion 解析请求版本并返回用于匹配的路径
// 顺序：请求头 → URL 前缀 /vN（命中时从路径剥离）→
// 查询参数 version → 配置默认值
func resolveVersion(r *http.Request, cfg VersionConfig) (version, matchPath string) {
	matchPath = r.URL.Path

	if v := r.Header.Get(cfg.Header); v != "" {
		return normalizeVersion(v), matchPath
	}

	if m := versionPrefixRe.FindStringSubmatch(r.URL.Path); m != nil {
		stripped := m[2]
		if stripped == "" {
			stripped = "/"
		}
		return m[1], stripped
	}

	if v := r.URL.Query().Get("version"); v != "" {
		return normalizeVersion(v), matchPath
	}

	return normalizeVersion(cfg.Default), matchPath
}
