// Package api exposes the engine over HTTP: JSON for the resource
// operations, SSE for live generation output, redirects for group-scoped
// thread addressing.
package api

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/hphungg/chatbot-sub001/errors"
)

type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(c *app.RequestContext, data interface{}) {
	c.JSON(consts.StatusOK, Response{
		Code:    "SUCCESS",
		Message: "operation successful",
		Data:    data,
	})
}

func CreatedResponse(c *app.RequestContext, data interface{}) {
	c.JSON(consts.StatusCreated, Response{
		Code:    "CREATED",
		Message: "resource created successfully",
		Data:    data,
	})
}

// taxonomyCode maps an engine error to its wire code. The same codes appear
// in JSON error responses and in SSE error events.
func taxonomyCode(err error) string {
	switch {
	case errors.IsValidation(err):
		return "INVALID_INPUT"
	case errors.IsUnauthenticated(err):
		return "UNAUTHENTICATED"
	case errors.IsForbidden(err):
		return "FORBIDDEN"
	case errors.IsNotFound(err):
		return "NOT_FOUND"
	case errors.IsConflict(err):
		return "CONFLICT"
	case errors.IsGeneration(err):
		return "GENERATION_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}

// ErrorResponse translates the error taxonomy to HTTP. Internal details
// never leak: the client sees the classification, the log sees the cause.
func ErrorResponse(c *app.RequestContext, err error) {
	code := taxonomyCode(err)
	switch code {
	case "INVALID_INPUT":
		c.JSON(consts.StatusBadRequest, Response{Code: code, Message: "invalid input"})
	case "UNAUTHENTICATED":
		c.JSON(consts.StatusUnauthorized, Response{Code: code, Message: "authentication required"})
	case "FORBIDDEN":
		c.JSON(consts.StatusForbidden, Response{Code: code, Message: "access denied"})
	case "NOT_FOUND":
		c.JSON(consts.StatusNotFound, Response{Code: code, Message: "resource not found"})
	case "CONFLICT":
		c.JSON(consts.StatusConflict, Response{Code: code, Message: "a generation is already in flight, attach to its stream instead"})
	case "GENERATION_FAILED":
		c.JSON(consts.StatusBadGateway, Response{Code: code, Message: "generation backend failed"})
	default:
		c.JSON(consts.StatusInternalServerError, Response{Code: code, Message: "internal server error"})
	}
}
