package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/internal"
	"go.uber.org/zap"
)

// skuResponse is the body of GET /api/v1/sku/{sku}.
type skuResponse struct {
	SKU    string                `json:"sku"`
	Valid  bool                  `json:"valid"`
	Parsed *tradeschema.SKU      `json:"parsed,omitempty"`
	Error  *tradeschema.SKUError `json:"error,omitempty"`
}

// handleCheckSKU handles GET /api/v1/sku/{sku}
func (s *Server) handleCheckSKU(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("sku")
	resp := skuResponse{SKU: raw}

	parsed, err := tradeschema.ParseSKU(raw)
	if err != nil {
		errors.As(err, &resp.Error)
	} else {
		resp.Valid = true
		resp.Parsed = parsed
	}
	writeSuccess(w, http.StatusOK, resp)
}

// handleValidate handles POST /api/v1/validate/{schemaID}
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	schemaID := r.PathValue("schemaID")

	body, err := readBody(w, r, int64(s.config.Validation.MaxDocumentSize))
	if err != nil {
		writeFailure(w, err)
		return
	}

	violations, err := s.schemas.Validator.Validate(r.Context(), schemaID, json.RawMessage(body))
	if err != nil && !tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeIntegrity) {
		writeFailure(w, err)
		return
	}

	report := tradeschema.NewValidationReport(schemaID, violations)
	report.Fingerprint = fmt.Sprintf("%016x", s.schemas.Holder.Fingerprint())

	if err != nil {
		zap.S().Errorw("validation stopped on registry integrity error", "schema", schemaID, "error", err)
		report.Valid = false
		writeJSON(w, http.StatusInternalServerError, struct {
			*tradeschema.ValidationReport
			Error string `json:"error"`
		}{report, err.Error()})
		return
	}

	s.logReport(report)
	s.crossCheck(r.Context(), schemaID, body, report.Valid)
	writeSuccess(w, http.StatusOK, report)
}

func (s *Server) logReport(report *tradeschema.ValidationReport) {
	if report.Valid {
		if s.config.Logging.LogValidDocuments {
			zap.S().Infow("document valid", "id", report.ID, "schema", report.SchemaID)
		}
		return
	}
	fields := []any{"id", report.ID, "schema", report.SchemaID, "violations", len(report.Violations)}
	if s.config.Logging.LogViolationDetails {
		errs := tradeschema.NewValidationErrors(report.SchemaID, report.Violations)
		fields = append(fields, "report", errs.Report(s.config.Validation.MaxViolations))
	}
	zap.S().Infow("document invalid", fields...)
}

// crossCheck runs the exported JSON Schema against the same document and
// logs any disagreement with the native validator.
func (s *Server) crossCheck(ctx context.Context, schemaID string, body []byte, valid bool) {
	if s.schemas.CrossCheck == nil {
		return
	}
	err := s.schemas.CrossCheck.Validate(ctx, schemaID, json.RawMessage(body))
	if (err == nil) != valid {
		zap.S().Warnw("json schema cross-check disagrees with validator",
			"schema", schemaID, "validatorValid", valid, "crossCheckError", err)
	}
}

// handleListSchemas handles GET /api/v1/schemas
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"schemas":     s.schemas.Holder.ListSchemas(),
		"fingerprint": fmt.Sprintf("%016x", s.schemas.Holder.Fingerprint()),
	})
}

// handleGetSchema handles GET /api/v1/schemas/{id}
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.schemas.Holder.Resolve(r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, schema)
}

// handleExportSchema handles GET /api/v1/schemas/{id}/jsonschema
func (s *Server) handleExportSchema(w http.ResponseWriter, r *http.Request) {
	exported, err := internal.ExportJSONSchema(s.schemas.Holder, r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(exported)
}

// handleIngestPricelist handles PUT /api/v1/pricelist
func (s *Server) handleIngestPricelist(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		writeError(w, http.StatusServiceUnavailable, "pricelist storage is not configured")
		return
	}

	body, err := readBody(w, r, int64(s.config.Validation.MaxDocumentSize))
	if err != nil {
		writeFailure(w, err)
		return
	}

	result, err := s.ingestor.Ingest(r.Context(), body)
	if err != nil {
		zap.S().Errorw("pricelist ingestion failed", "error", err)
		writeFailure(w, err)
		return
	}
	if !result.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleListPricelist handles GET /api/v1/pricelist
func (s *Server) handleListPricelist(w http.ResponseWriter, r *http.Request) {
	if s.pricelist == nil {
		writeError(w, http.StatusServiceUnavailable, "pricelist storage is not configured")
		return
	}
	entries, err := s.pricelist.List(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

// handleGetPrice handles GET /api/v1/pricelist/{sku}
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	if s.pricelist == nil {
		writeError(w, http.StatusServiceUnavailable, "pricelist storage is not configured")
		return
	}
	sku := r.PathValue("sku")
	if !tradeschema.IsValidSKU(sku) {
		_, cause := tradeschema.ParseSKU(sku)
		writeFailure(w, tradeschema.NewInvalidSKUError("sku", sku, cause))
		return
	}
	entry, err := s.pricelist.Get(r.Context(), sku)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, entry)
}

// handleDeletePrice handles DELETE /api/v1/pricelist/{sku}
func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	if s.pricelist == nil {
		writeError(w, http.StatusServiceUnavailable, "pricelist storage is not configured")
		return
	}
	if err := s.pricelist.Delete(r.Context(), r.PathValue("sku")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"schemas": len(s.schemas.Holder.ListSchemas()),
		"checks":  checks,
	})
}
