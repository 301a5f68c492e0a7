package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/duelhouse/duelengine/internal/domain"
)

// AdminService defines the configuration operations the admin handler needs.
type AdminService interface {
	Params() domain.EngineParams
	Update(ctx context.Context, p domain.EngineParams) error
}

// AdminHandler serves the owner-only engine configuration and audit
// endpoints.
type AdminHandler struct {
	admin  AdminService
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given service and logger.
func NewAdminHandler(admin AdminService, audit domain.AuditStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		audit:  audit,
		logger: logger,
	}
}

// GetConfig returns the current engine parameters.
// GET /api/admin/config
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.admin.Params())
}

// PutConfig replaces the engine parameters. The full parameter set must be
// supplied; out-of-bounds values reject the whole update.
// PUT /api/admin/config
func (h *AdminHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var params domain.EngineParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.admin.Update(r.Context(), params); err != nil {
		writeDomainError(w, r, h.logger, "update config", err)
		return
	}

	h.logger.InfoContext(r.Context(), "engine params updated")
	writeJSON(w, http.StatusOK, h.admin.Params())
}

// auditResponse wraps the audit listing with pagination metadata.
type auditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// GetAudit returns the engine audit trail, oldest first.
// GET /api/admin/audit?limit=50&offset=0
func (h *AdminHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list audit entries", err)
		return
	}

	writeJSON(w, http.StatusOK, auditResponse{
		Entries: entries,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
