package tradeschema

import (
	"fmt"
	"strconv"
)

// ReasonCode classifies a single mismatch between a document and a schema.
type ReasonCode string

const (
	ReasonTypeMismatch        ReasonCode = "type-mismatch"
	ReasonUnexpectedProperty  ReasonCode = "unexpected-property"
	ReasonMissingRequired     ReasonCode = "missing-required"
	ReasonPatternMismatch     ReasonCode = "pattern-mismatch"
	ReasonLengthExceeded      ReasonCode = "length-exceeded"
	ReasonUnresolvedReference ReasonCode = "unresolved-reference"
	ReasonOutOfRange          ReasonCode = "out-of-range"
	ReasonEnumMismatch        ReasonCode = "enum-mismatch"
)

// Violation is one reported mismatch. Path is the property chain from the
// document root, e.g. "highValue.sheens[2]"; the root itself is "".
type Violation struct {
	Path     string     `json:"path"`
	Reason   ReasonCode `json:"reason"`
	Message  string     `json:"message"`
	SchemaID string     `json:"schemaId,omitempty"` // innermost registered schema being applied
}

func (v Violation) String() string {
	path := v.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("%s: %s: %s", path, v.Reason, v.Message)
}

// NewViolation creates a Violation.
func NewViolation(path string, reason ReasonCode, format string, args ...any) Violation {
	return Violation{
		Path:    path,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// joinPath appends a property name to a property chain.
func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// JoinPath appends a property name to a property chain.
func JoinPath(path, name string) string {
	return joinPath(path, name)
}

// IndexPath appends an array index to a property chain.
func IndexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
