package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidToken  = errors.New("invalid voter token")
	ErrVoteNotFound  = errors.New("vote not found")
	ErrTallyNotFound = errors.New("no popularity recorded for this choice")
	ErrInternal      = errors.New("internal server error")
)

// ConnectStage names the step of connection acquisition that failed.
type ConnectStage string

const (
	StageTunnel   ConnectStage = "tunnel"
	StageDatabase ConnectStage = "database"
)

// ConnectCause tags why a stage failed.
type ConnectCause string

const (
	CauseAuth    ConnectCause = "auth"
	CauseNetwork ConnectCause = "network"
	CauseRefused ConnectCause = "refused"
	CauseTimeout ConnectCause = "timeout"
	CauseConfig  ConnectCause = "config"
)

// ConnectError reports that the tunnel or the database could not be
// reached. It is fatal to the current unit of work and is never retried here.
type ConnectError struct {
	Stage ConnectStage
	Cause ConnectCause
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s (%s): %v", e.Stage, e.Cause, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ValidationError is returned for missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
