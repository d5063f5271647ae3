package monitor

import (
	"errors"
	"fmt"

	"basegraph.app/pulse/internal/model"
)

// ErrTransientStore marks task store failures (network, timeout) that abort the
// current cycle. The next scheduled cycle retries with a fresh fetch.
var ErrTransientStore = errors.New("transient task store error")

type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("task store %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() []error {
	return []error{ErrTransientStore, e.Err}
}

// GenerationError is local to one task; the task is skipped for this cycle.
type GenerationError struct {
	TaskID   string
	Category model.MessageCategory
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating %s message for task %s: %v", e.Category, e.TaskID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// PartialWriteError is returned when AppendComment fails after a positive
// decision. No cooldown record exists, so the task stays eligible.
type PartialWriteError struct {
	TaskID string
	Err    error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("appending comment to task %s: %v", e.TaskID, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var errEmptyMessage = errors.New("generator returned an empty message")
