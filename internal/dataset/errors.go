package dataset

import "fmt"

// ValidationError indicates an operation's preconditions were not met, e.g.
// declaring a label before a segmentation mask exists, or a malformed
// selector. The container is left untouched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a referenced entity (label, cell, feature, channel)
// is absent from the container.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func notFoundf(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}
