package tradeschema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeStorage    ErrorType = "storage"
)

// Error codes
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidSKU       = "INVALID_SKU"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeInternalError    = "INTERNAL_ERROR"

	// Pricelist storage
	ErrCodePriceNotFound    = "PRICE_NOT_FOUND"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
	ErrCodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	ErrCodeUnsupportedURI   = "UNSUPPORTED_URI"
)

// TradeError is the error returned by storage and ingestion operations.
type TradeError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *TradeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *TradeError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail
func (e *TradeError) WithDetail(key string, value any) *TradeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause
func (e *TradeError) WithCause(cause error) *TradeError {
	e.Cause = cause
	return e
}

// WithField adds field context
func (e *TradeError) WithField(field string) *TradeError {
	e.Field = field
	return e
}

// NewTradeError creates a new TradeError
func NewTradeError(errorType ErrorType, code, message string) *TradeError {
	return &TradeError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewInvalidSKUError wraps a SKU grammar failure for the given field.
func NewInvalidSKUError(field, sku string, cause error) *TradeError {
	return &TradeError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidSKU,
		Message: fmt.Sprintf("sku %q is not a valid item identity", sku),
		Field:   field,
		Details: map[string]any{"sku": sku},
		Cause:   cause,
	}
}

// NewPriceNotFoundError reports a missing pricelist entry.
func NewPriceNotFoundError(sku string) *TradeError {
	return &TradeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodePriceNotFound,
		Message: fmt.Sprintf("no pricelist entry for sku %q", sku),
		Details: map[string]any{"sku": sku},
	}
}

// NewStorageError wraps a failure from the persistence layer.
func NewStorageError(message string, cause error) *TradeError {
	return &TradeError{
		Type:    ErrorTypeStorage,
		Code:    ErrCodeStorageFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewDocumentNotFoundError reports a missing source document.
func NewDocumentNotFoundError(uri string, cause error) *TradeError {
	return &TradeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeDocumentNotFound,
		Message: fmt.Sprintf("document %s not found", uri),
		Details: map[string]any{"uri": uri},
		Cause:   cause,
	}
}

// IsNotFoundError checks if an error is a TradeError of type not found
func IsNotFoundError(err error) bool {
	var te *TradeError
	return errors.As(err, &te) && te.Type == ErrorTypeNotFound
}

// IsInvalidSKUError checks if an error rejects an item identity
func IsInvalidSKUError(err error) bool {
	var te *TradeError
	return errors.As(err, &te) && te.Code == ErrCodeInvalidSKU
}

// ============================================================================
// SchemaError Type and Constructors
// ============================================================================

// SchemaErrorType represents the type of schema error
type SchemaErrorType string

const (
	SchemaErrorTypeNotFound          SchemaErrorType = "schema_not_found"
	SchemaErrorTypeDuplicateID       SchemaErrorType = "duplicate_id"
	SchemaErrorTypeUnresolvedRef     SchemaErrorType = "unresolved_reference"
	SchemaErrorTypeInvalidDefinition SchemaErrorType = "invalid_definition"
	SchemaErrorTypeReferenceCycle    SchemaErrorType = "reference_cycle"
	// SchemaErrorTypeIntegrity is raised while validating a document when the
	// registry itself is inconsistent (a reference cannot be followed).
	SchemaErrorTypeIntegrity SchemaErrorType = "schema_integrity"
)

// SchemaError represents registry construction and integrity errors.
type SchemaError struct {
	Type    SchemaErrorType `json:"type"`
	Message string          `json:"message"`
	IDs     []string        `json:"ids,omitempty"`
	Path    string          `json:"path,omitempty"`
	Cause   error           `json:"-"`
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("schema error [%s] at %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("schema error [%s]: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// WithCause adds a cause to the error
func (e *SchemaError) WithCause(cause error) *SchemaError {
	e.Cause = cause
	return e
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(errorType SchemaErrorType, message string, cause error) *SchemaError {
	return &SchemaError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewSchemaNotFoundError creates a schema not found error
func NewSchemaNotFoundError(id string) *SchemaError {
	return &SchemaError{
		Type:    SchemaErrorTypeNotFound,
		Message: fmt.Sprintf("schema '%s' not found", id),
		IDs:     []string{id},
	}
}

// NewDuplicateIDError reports a second registration of an id under the reject policy.
func NewDuplicateIDError(id string) *SchemaError {
	return &SchemaError{
		Type:    SchemaErrorTypeDuplicateID,
		Message: fmt.Sprintf("schema %q already registered", id),
		IDs:     []string{id},
	}
}

// NewUnresolvedReferenceError lists references that do not name a registered schema.
func NewUnresolvedReferenceError(ids []string) *SchemaError {
	return &SchemaError{
		Type:    SchemaErrorTypeUnresolvedRef,
		Message: "unresolved $ref: " + strings.Join(ids, ", "),
		IDs:     ids,
	}
}

// NewInvalidDefinitionError reports a malformed schema definition.
func NewInvalidDefinitionError(path, message string) *SchemaError {
	return &SchemaError{
		Type:    SchemaErrorTypeInvalidDefinition,
		Message: message,
		Path:    path,
	}
}

// NewReferenceCycleError reports a chain of $ref nodes that never reaches a
// concrete type.
func NewReferenceCycleError(chain []string) *SchemaError {
	return &SchemaError{
		Type:    SchemaErrorTypeReferenceCycle,
		Message: "reference cycle: " + strings.Join(chain, " -> "),
		IDs:     chain,
	}
}

// NewSchemaIntegrityError reports references that could not be followed
// while validating a document.
func NewSchemaIntegrityError(ids []string) *SchemaError {
	return &SchemaError{
		Type:    SchemaErrorTypeIntegrity,
		Message: "registry cannot resolve: " + strings.Join(ids, ", "),
		IDs:     ids,
	}
}

// IsSchemaError checks if an error is a SchemaError of a specific type
func IsSchemaError(err error, errorType SchemaErrorType) bool {
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Type == errorType
	}
	return false
}

// ============================================================================
// ValidationErrors Type and Constructors
// ============================================================================

// ValidationErrors carries every violation found in one document pass.
type ValidationErrors struct {
	SchemaID   string      `json:"schemaId"`
	Violations []Violation `json:"violations"`
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors(schemaID string, violations []Violation) *ValidationErrors {
	return &ValidationErrors{
		SchemaID:   schemaID,
		Violations: violations,
	}
}

// Error implements the error interface for ValidationErrors
func (ve *ValidationErrors) Error() string {
	switch len(ve.Violations) {
	case 0:
		return "no validation errors"
	case 1:
		return fmt.Sprintf("document does not satisfy %s: %s", ve.SchemaID, ve.Violations[0].String())
	}
	return fmt.Sprintf("document does not satisfy %s: %d violations found", ve.SchemaID, len(ve.Violations))
}

// Add adds a new violation to the collection
func (ve *ValidationErrors) Add(v Violation) {
	ve.Violations = append(ve.Violations, v)
}

// HasErrors returns true if there are any violations
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Violations) > 0
}

// ToError returns the ValidationErrors as an error if there are any violations, nil otherwise
func (ve *ValidationErrors) ToError() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ByReason returns violations grouped by reason code
func (ve *ValidationErrors) ByReason() map[ReasonCode][]Violation {
	grouped := make(map[ReasonCode][]Violation)
	for _, v := range ve.Violations {
		grouped[v.Reason] = append(grouped[v.Reason], v)
	}
	return grouped
}

// Summary returns the number of violations per reason code
func (ve *ValidationErrors) Summary() map[ReasonCode]int {
	summary := make(map[ReasonCode]int)
	for _, v := range ve.Violations {
		summary[v.Reason]++
	}
	return summary
}

// Report returns a multi-line listing for logs and CLI output, capped at limit lines.
func (ve *ValidationErrors) Report(limit int) string {
	if !ve.HasErrors() {
		return fmt.Sprintf("document satisfies %s", ve.SchemaID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d violation(s) against %s\n", len(ve.Violations), ve.SchemaID)
	for i, v := range ve.Violations {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&b, "  ... and %d more\n", len(ve.Violations)-limit)
			break
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, v.String())
	}
	return b.String()
}
