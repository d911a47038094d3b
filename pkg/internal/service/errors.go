package service

import "errors"

// 业务错误哨兵. handler 层据此映射 HTTP 状态码.
var (
	// ErrNotFound 目标不存在或对请求者不可见.
	ErrNotFound = errors.New("not found")
	// ErrForbidden 请求者没有所需权限.
	ErrForbidden = errors.New("forbidden")
	// ErrExpired 分享链接已过期.
	ErrExpired = errors.New("share expired")
	// ErrGone 目标文件已删除或超过保留期.
	ErrGone = errors.New("file gone")
	// ErrShareInactive 分享已被吊销.
	ErrShareInactive = errors.New("share inactive")
	// ErrTooLarge 上传超过单文件大小上限.
	ErrTooLarge = errors.New("file too large")
	// ErrValidation 请求参数不合法.
	ErrValidation = errors.New("validation failed")
)
