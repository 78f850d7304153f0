package errors

import (
	"strings"
)

// Generic fallbacks shown when the backend rejects a call without a message,
// or when an unexpected error escapes a call site.
var genericMessages = map[string]string{
	"es": "Ocurrió un error al procesar tu solicitud. Intentá nuevamente.",
	"en": "Something went wrong while processing your request. Please try again.",
}

// GenericMessage returns the localized generic fallback; unknown languages get Spanish.
func GenericMessage(lang string) string {
	if msg, ok := genericMessages[strings.ToLower(lang)]; ok {
		return msg
	}
	return genericMessages["es"]
}

// UserMessage resolves the single user-facing string for err: the first
// structured error message when present, the error's own message for
// configuration and validation failures, and the generic fallback otherwise.
func UserMessage(err error, lang string) string {
	if err == nil {
		return ""
	}
	stdErr := Normalize(err)
	switch stdErr.Code {
	case ErrCodeBackendRejected:
		for _, f := range stdErr.Fields {
			if msg := strings.TrimSpace(f.Message); msg != "" {
				return msg
			}
		}
		return GenericMessage(lang)
	case ErrCodeConfiguration, ErrCodeValidationFailed, ErrCodeInvalidTransition, ErrCodeTransport:
		if strings.TrimSpace(stdErr.Message) != "" {
			return stdErr.Message
		}
		return GenericMessage(lang)
	default:
		return GenericMessage(lang)
	}
}

// ErrorHandler logs step failures with a consistent shape and resolves the
// message to show the user.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleStepError logs err against the step that produced it and returns the
// user-facing message. Validation failures are logged at warn level since
// they are expected traffic.
func (h *ErrorHandler) HandleStepError(step string, err error, lang string) string {
	stdErr := Normalize(err)
	if stdErr == nil {
		return ""
	}
	fields := map[string]interface{}{
		"step":          step,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if h.logger != nil {
		switch stdErr.Code {
		case ErrCodeValidationFailed, ErrCodeInvalidTransition, ErrCodeStaleResponse:
			h.logger.Warn("Wizard step rejected", fields)
		default:
			h.logger.Error("Wizard step failed", fields)
		}
	}
	return UserMessage(stdErr, lang)
}
