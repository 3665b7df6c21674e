package aiinterface

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// ConnErrorCode 识别连接级错误码，无法识别时返回空字符串
func ConnErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ConnCodeTimeout
	case errors.Is(err, context.Canceled):
		return ConnCodeCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnCodeRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ConnCodeReset
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return ConnCodeUnreachable
	case errors.Is(err, syscall.ETIMEDOUT):
		return ConnCodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ConnCodeTimeout
		}
		return ConnCodeNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ConnCodeTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// 其余拨号阶段失败一律按拒绝连接处理
		if opErr.Op == "dial" {
			return ConnCodeRefused
		}
		return ConnCodeReset
	}

	return ""
}
