package validation

import (
	"fmt"
	"strings"
	"unicode"

	"groupcast/internal/constants"
	"groupcast/internal/errors"
)

// ValidateGroupJID validates a WhatsApp group identifier like "123456789@g.us"
func ValidateGroupJID(jid string) error {
	if jid == "" {
		return errors.New(errors.ErrCodeInvalidInput, "group jid cannot be empty")
	}

	if !strings.HasSuffix(jid, "@g.us") {
		return errors.New(errors.ErrCodeInvalidInput, "group jid must end with @g.us")
	}

	local := strings.TrimSuffix(jid, "@g.us")
	if local == "" {
		return errors.New(errors.ErrCodeInvalidInput, "group jid missing identifier part")
	}

	for _, char := range local {
		if !unicode.IsDigit(char) && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput, "group jid must contain only digits and dashes before @g.us")
		}
	}

	return nil
}

// ValidateMessageText validates message content length and characters
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message text cannot be empty")
	}

	if len(text) > constants.MaxMessageLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message text too long (max %d characters)", constants.MaxMessageLength))
	}

	return nil
}

// ValidateRowID validates the optional user-facing row label
func ValidateRowID(rowID string) error {
	if len(rowID) > constants.MaxRowIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("row id too long (max %d characters)", constants.MaxRowIDLength))
	}

	for _, char := range rowID {
		if char == '\x00' || char == '\n' || char == '\r' {
			return errors.New(errors.ErrCodeInvalidInput, "row id contains invalid characters")
		}
	}

	return nil
}

// ValidateRandomDelayMaxMinutes validates the global jitter ceiling
func ValidateRandomDelayMaxMinutes(minutes int) error {
	if minutes < 0 || minutes > constants.MaxRandomDelayMinutes {
		return errors.NewGuardError(
			fmt.Sprintf("randomDelayMaxMinutes must be between 0 and %d", constants.MaxRandomDelayMinutes))
	}
	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}
