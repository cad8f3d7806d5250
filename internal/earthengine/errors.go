package earthengine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// 文档注释：判定错误是否为暂时性错误
// 背景：限流、服务端 5xx、网络中断与单次调用超时可重试；参数错误（如非法几何）由服务端以 4xx 返回，不重试。
// 约束：调用方上下文被取消视为不可重试。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
