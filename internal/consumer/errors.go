package consumer

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// PermanentError marks a failure that redelivery cannot fix. The consumer
// deletes the message instead of leaving it for another attempt.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the consumer drops the message.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

const maxFailureReasonLength = 1024

func truncateError(err error) string {
	message := err.Error()
	if len(message) <= maxFailureReasonLength {
		return message
	}
	cut := maxFailureReasonLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
