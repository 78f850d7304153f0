package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/lead/session"
)

const codeBadRequest = "BAD_REQUEST"

type APIError struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Fields  []commonerrors.FieldError `json:"fields,omitempty"`
}

// ErrorEnvelope carries the failure and, for wizard actions, the record the
// session was left in.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
	*session.Record
}

// StatusFor maps an error code onto the HTTP status the API answers with.
func StatusFor(code commonerrors.ErrorCode) int {
	switch code {
	case commonerrors.ErrCodeValidationFailed, commonerrors.ErrCodeCorruptMetadata:
		return http.StatusUnprocessableEntity
	case commonerrors.ErrCodeBackendRejected, commonerrors.ErrCodeStaleResponse, commonerrors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case commonerrors.ErrCodeTransport, commonerrors.ErrCodeMarketplaceDegraded:
		return http.StatusBadGateway
	case commonerrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the envelope for err. lang picks the user-facing
// message; rec is attached when the failure happened inside a session.
func RespondError(c *gin.Context, err error, lang string, rec *session.Record) {
	stdErr := commonerrors.Normalize(err)
	c.JSON(StatusFor(stdErr.Code), ErrorEnvelope{
		Error: APIError{
			Code:    string(stdErr.Code),
			Message: commonerrors.UserMessage(err, lang),
			Fields:  stdErr.Fields,
		},
		Record: rec,
	})
}

func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorEnvelope{
		Error: APIError{Code: codeBadRequest, Message: message},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
