package validator

import (
	"fmt"
	"strings"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const maxMessageLength = 4000

// ValidateMessageContent checks the request-shape rules for a message body.
// The service re-checks the trimmed-empty rule; this guards the transport
// boundary so malformed requests never reach it.
func ValidateMessageContent(content string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(content) == "" {
		errs.Add("content", "Message content is required")
	} else if len(content) > maxMessageLength {
		errs.Add("content", fmt.Sprintf("Message content must be at most %d characters", maxMessageLength))
	}

	return errs
}
