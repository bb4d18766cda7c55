// Package resp 提供统一的 HTTP JSON 响应封装与业务错误码。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务错误码。0 表示成功，其余按类别分段。
const (
	CodeOK = 0

	CodeInvalidParam      = 10001
	CodeNotFound          = 10004
	CodeInsufficientStock = 20001
	CodeInvalidTransition = 20002
	CodeConflict          = 20009
	CodeTooManyRequests   = 10029
	CodeTimeout           = 10008
	CodeInternalError     = 50000
)

// Response 统一响应结构
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      *T     `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteJSON 写出统一格式的 JSON 响应
func WriteJSON[T any](w http.ResponseWriter, httpStatus int, code int, msg string, data *T, reqID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if reqID != "" {
		w.Header().Set("X-Request-ID", reqID)
	}
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(Response[T]{
		Code:      code,
		Message:   msg,
		Data:      data,
		RequestID: reqID,
		TraceID:   traceID,
	})
}

// OK 写出成功响应
func OK[T any](w http.ResponseWriter, data *T, reqID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "success", data, reqID, traceID)
}

// Created 写出 201 成功响应
func Created[T any](w http.ResponseWriter, data *T, reqID, traceID string) {
	WriteJSON(w, http.StatusCreated, CodeOK, "success", data, reqID, traceID)
}

// Error 写出错误响应（无 data）
func Error(w http.ResponseWriter, httpStatus int, code int, msg string, reqID, traceID string) {
	WriteJSON[any](w, httpStatus, code, msg, nil, reqID, traceID)
}

// HTTPStatusFromCode 将业务错误码映射为 HTTP 状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientStock, CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
