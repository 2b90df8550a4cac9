package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lychee-technology/tradeschema"
)

// APIResponse is the standard error response format
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, data)
}

// writeFailure maps err to a status code and writes it.
func writeFailure(w http.ResponseWriter, err error) error {
	resp := APIResponse{Success: false, Error: err.Error()}
	var tradeErr *tradeschema.TradeError
	if errors.As(err, &tradeErr) {
		resp.Code = tradeErr.Code
	}
	var schemaErr *tradeschema.SchemaError
	if errors.As(err, &schemaErr) {
		resp.Code = string(schemaErr.Type)
	}
	return writeJSON(w, statusForError(err), resp)
}

func statusForError(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeNotFound),
		tradeschema.IsNotFoundError(err):
		return http.StatusNotFound
	case tradeschema.IsInvalidSKUError(err):
		return http.StatusBadRequest
	}

	var tradeErr *tradeschema.TradeError
	if errors.As(err, &tradeErr) && tradeErr.Type == tradeschema.ErrorTypeValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeInvalidJSON, "request body is empty")
	}
	return data, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(defaultValue/time.Second))) * time.Second
}
