package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeBalanceNotEnough     = 1001
	CodeUnknownFarmType      = 1002
	CodeUnknownBoostType     = 1003
	CodeAuctionNotFound      = 1004
	CodeAuctionExpired       = 1005
	CodeAuctionAlreadyEnded  = 1006
	CodeBidTooLow            = 1007
	CodeSelfReferral         = 1008
	CodeDuplicateReferral    = 1009
	CodeRewardAlreadyGiven   = 1010
	CodeWagerTooSmall        = 1011
	CodeUserBanned           = 1012
	CodeConflictRetry        = 1013
)

type Response struct {
	Code    int         `json:"code"`
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

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
