package handler

import (
	"errors"
	"net/http"

	"chat_relay_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ResponseData 统一响应结构体
// 业务码放在 code，HTTP 状态码按 httpStatus 映射
type ResponseData struct {
	Code int `json:"code"`           // 业务响应状态码
	Msg  any `json:"msg"`            // 提示信息
	Data any `json:"data,omitempty"` // 数据
}

// httpStatus 业务码对应的 HTTP 状态码
func httpStatus(code int) int {
	switch code {
	case errorx.CodeSuccess:
		return http.StatusOK
	case errorx.CodeInvalidParam:
		return http.StatusBadRequest
	case errorx.CodeUnauthorized:
		return http.StatusUnauthorized
	case errorx.CodeNotFound:
		return http.StatusNotFound
	case errorx.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func reply(c *gin.Context, code int, msg any, data any) {
	c.JSON(httpStatus(code), ResponseData{Code: code, Msg: msg, Data: data})
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	reply(c, errorx.CodeSuccess, "success", data)
}

// HandleError 通用错误处理方法
// errorx.CodeError 原样返回业务码和消息，其余错误记录日志后按 CodeServerBusy 返回
// 取消已执行的定时任务返回 409 + CodeConflict
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		if httpStatus(codeErr.Code) == http.StatusInternalServerError {
			zap.L().Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("code", codeErr.Code),
				zap.Error(err),
			)
		}
		reply(c, codeErr.Code, codeErr.Msg, nil)
		return
	}

	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	reply(c, errorx.ErrServerBusy.Code, errorx.ErrServerBusy.Msg, nil)
}

// HandleParamError 处理参数绑定错误（带 validator 翻译支持）
// 自动识别 validator.ValidationErrors 类型并进行翻译
func HandleParamError(c *gin.Context, err error) {
	// 尝试断言为 validator.ValidationErrors 类型
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		// validator.ValidationErrors类型错误则进行翻译
		// 翻译后去除结构体名前缀
		reply(c, errorx.CodeInvalidParam, RemoveTopStruct(validationErrs.Translate(Trans)), nil)
		return
	}

	// 非 validator 错误（如 JSON 格式错误）
	zap.L().Warn("param bind error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	reply(c, errorx.CodeInvalidParam, errorx.ErrInvalidParam.Msg, nil)
}
