package errors

import (
	"github.com/sirupsen/logrus"
)

// LogFields flattens an AppError's code, retryability and context into
// logrus fields. Plain errors yield no extra fields.
func LogFields(err error) logrus.Fields {
	appErr, ok := err.(*AppError)
	if !ok {
		return nil
	}

	fields := logrus.Fields{
		"error_code": appErr.Code,
		"retryable":  appErr.Retryable,
	}
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return fields
}

// LogRetryable logs a retryable error at warn level, non-retryable at
// error level, with the structured fields attached.
func LogRetryable(logger logrus.FieldLogger, err error, message string) {
	entry := logger.WithError(err).WithFields(LogFields(err))
	if IsRetryable(err) {
		entry.Warn(message)
		return
	}
	entry.Error(message)
}
