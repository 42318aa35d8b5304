package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 描述一次 HTTP 请求
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       io.Reader

	// Response 非 nil 时保存原始响应体
	Response *[]byte

	// ResponseHeader 请求完成后由客户端填充
	ResponseHeader http.Header

	Timeout time.Duration
}

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d: %s", e.StatusCode, string(e.Body))
}
