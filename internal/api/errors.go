// Package api 提供商品库存、购物车与订单的 HTTP 处理器。
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/petshop_engine/internal/domain"
	"github.com/MorseWayne/petshop_engine/internal/middleware"
	"github.com/MorseWayne/petshop_engine/internal/resp"
)

// codeForError 将领域错误类别映射为业务错误码
func codeForError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return resp.CodeInvalidParam
	case domain.KindNotFound:
		return resp.CodeNotFound
	case domain.KindInsufficientStock:
		return resp.CodeInsufficientStock
	case domain.KindInvalidTransition:
		return resp.CodeInvalidTransition
	default:
		return resp.CodeInternalError
	}
}

// requestID 获取请求ID
func requestID(c *gin.Context) string {
	return middleware.RequestIDFromContext(c.Request.Context())
}

// traceID 获取追踪ID
func traceID(c *gin.Context) string {
	return c.GetString("trace_id")
}

// writeError 输出错误响应。领域错误原样返回信息；请求上下文已超时时输出 504；其他错误记录日志并隐藏细节。
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	code := codeForError(err)
	if code == resp.CodeInternalError && middleware.HandleTimeout(c.Writer, c.Request) {
		logger.Warn(op+" timed out", zap.String("request_id", requestID(c)), zap.Error(err))
		return
	}
	msg := err.Error()
	if code == resp.CodeInternalError {
		logger.Error(op+" failed", zap.String("request_id", requestID(c)), zap.Error(err))
		msg = op + " failed"
	} else {
		logger.Debug(op+" rejected", zap.String("request_id", requestID(c)), zap.Error(err))
	}
	resp.Error(c.Writer, resp.HTTPStatusFromCode(code), code, msg, requestID(c), traceID(c))
}

// bindJSON 解析请求体，失败时直接写出 400
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
			"invalid request body", requestID(c), traceID(c))
		return false
	}
	return true
}

func writeOK[T any](c *gin.Context, data *T) {
	resp.OK(c.Writer, data, requestID(c), traceID(c))
}

func writeCreated[T any](c *gin.Context, data *T) {
	resp.Created(c.Writer, data, requestID(c), traceID(c))
}
