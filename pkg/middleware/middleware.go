// Package middleware 提供 gin 中间件：认证、CORS、日志、指标、限流与熔断.
package middleware
