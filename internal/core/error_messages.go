package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. HTTP handlers use it for non-validation failures; the raw
// error is only logged.
//
// Codes by category:
//
//	DB001-DB004    database connectivity and constraints
//	FILE001-FILE005 upload file problems
//	UPL001-UPL005  admission and queueing
//	RATE001        request throttling
//	ERR000         fallback; check the logs for the original error
//
// Sentinel errors are matched first with errors.Is. Anything else falls back
// to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"strings"
)

// UserMessage is what a client sees for a failed request.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

var (
	msgUploadNotFound = UserMessage{
		Message: "Upload not found",
		Action:  "Check the upload id",
		Code:    "UPL003",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgQueueUnavailable = UserMessage{
		Message: "Upload processing is unavailable",
		Action:  "The server is shutting down. Please try again shortly",
		Code:    "UPL004",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgSourceUnreadable = UserMessage{
		Message: "Stored file could not be read",
		Action:  "Upload the file again",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a CSV file with a header row",
		Code:    "FILE005",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with unique column headers",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8",
		Code:    "FILE003",
	}
)

// sentinelMessages is checked before the substring patterns.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrUploadNotFound, msgUploadNotFound},
	{ErrTooManyUploads, msgBusy},
	{ErrQueueFull, msgBusy},
	{ErrQueueClosed, msgQueueUnavailable},
	{ErrSourceUnreadable, msgSourceUnreadable},
	{ErrEmptyFile, msgEmptyFile},
	{ErrDuplicateHeader, msgInvalidCSV},
	{ErrNormalize, msgEncoding},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are lowercase substrings. Specific patterns go first.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Check for duplicate entries in your CSV",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced upload does not exist",
			Action:  "Upload the file again",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "no such bucket",
		msg: UserMessage{
			Message: "File storage is not configured",
			Action:  "Contact support",
			Code:    "FILE001",
		},
	},
	{pattern: "invalid csv", msg: msgInvalidCSV},
	{pattern: "encoding error", msg: msgEncoding},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "timeout", msg: msgTimeout},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a user-facing message. It returns the zero value
// for nil and the ERR000 fallback when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}
