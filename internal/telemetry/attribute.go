package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/constraints"
)

// String returns a string attribute.
func String[T ~string](k string, v T) attribute.KeyValue {
	return attribute.String(k, string(v))
}

// Stringer returns a string attribute. The value is the result of calling
// v.String().
func Stringer(k string, v fmt.Stringer) attribute.KeyValue {
	return attribute.String(k, v.String())
}

// Int returns an integer attribute.
func Int[T constraints.Integer](k string, v T) attribute.KeyValue {
	return attribute.Int64(k, int64(v))
}

// Bool returns a boolean attribute.
func Bool(k string, v bool) attribute.KeyValue {
	return attribute.Bool(k, v)
}
