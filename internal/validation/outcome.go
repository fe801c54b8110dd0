package validation

import "fmt"

// Outcome is the result of validating one value. When Valid is true Message
// is empty; Value is nil for null input or a rejected value.
type Outcome[T any] struct {
	Valid   bool
	Message string
	Value   *T
}

// Rule validates and normalizes a single JSON-decoded value.
type Rule[T any] func(raw any) Outcome[T]

func accept[T any](v T) Outcome[T] {
	return Outcome[T]{Valid: true, Value: &v}
}

func absent[T any]() Outcome[T] {
	return Outcome[T]{Valid: true}
}

func reject[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{Message: fmt.Sprintf(format, args...)}
}
