package response

import (
	"net/http"

	"paycore/internal/model"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// Business codes, one per error kind.
const (
	CodeInvalidState        = 1001
	CodeInsufficientBalance = 1002
	CodeLimitExceeded       = 1003
	CodeValidation          = 1004
	CodeComplianceRejected  = 1005
	CodeFraudRejected       = 1006
	CodeProcessingError     = 1007
)

var kindCodes = map[model.Kind]int{
	model.KindNotFound:            CodeNotFound,
	model.KindInvalidState:        CodeInvalidState,
	model.KindInsufficientBalance: CodeInsufficientBalance,
	model.KindLimitExceeded:       CodeLimitExceeded,
	model.KindValidation:          CodeValidation,
	model.KindComplianceRejected:  CodeComplianceRejected,
	model.KindFraudRejected:       CodeFraudRejected,
	model.KindProcessing:          CodeProcessingError,
}

type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// FromError writes err with the business code of its kind. Errors without
// a kind are reported as server errors.
func FromError(c *gin.Context, err error) {
	kind := model.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		ServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Kind:    string(kind),
		Message: err.Error(),
	})
}
