package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"finreg-audit/models"
	"finreg-audit/service"
	"finreg-audit/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditRuns is the run-tracking capability the handler needs
type AuditRuns interface {
	Start(req models.AuditRunRequest) (*models.AuditRun, error)
	Get(id uuid.UUID) (*models.AuditRun, error)
	Summary(run *models.AuditRun) service.Summary
}

// AuditHandler handles HTTP requests for audit runs
type AuditHandler struct {
	runs    AuditRuns
	storage storage.Storage
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(runs AuditRuns, storage storage.Storage) *AuditHandler {
	return &AuditHandler{
		runs:    runs,
		storage: storage,
	}
}

// Register mounts the audit routes on r
func (h *AuditHandler) Register(r gin.IRouter) {
	r.POST("/audits", h.StartAudit)
	r.GET("/audits/:id", h.GetAudit)
	r.GET("/audits/:id/checkpoint", h.GetCheckpoint)
}

// StartAuditRequest represents the request body for starting an audit run
type StartAuditRequest struct {
	Framework   string   `json:"framework" binding:"required"`
	Institution string   `json:"institution" binding:"required"`
	Examiner    string   `json:"examiner"`
	Sections    []string `json:"sections"`
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// StartAudit handles POST /api/audits
func (h *AuditHandler) StartAudit(c *gin.Context) {
	var req StartAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	run, err := h.runs.Start(models.AuditRunRequest{
		Framework:   models.Framework(req.Framework),
		Institution: req.Institution,
		Examiner:    req.Examiner,
		SectionIDs:  req.Sections,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownFramework):
			errorJSON(c, http.StatusBadRequest, "INVALID_FRAMEWORK", err.Error())
		case errors.Is(err, service.ErrNoSections):
			errorJSON(c, http.StatusBadRequest, "INVALID_SECTIONS", err.Error())
		case errors.Is(err, service.ErrEmptyCorpus):
			errorJSON(c, http.StatusConflict, "EMPTY_CORPUS", err.Error())
		default:
			errorJSON(c, http.StatusInternalServerError, "START_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"run_id":       run.ID,
			"status":       run.Status,
			"fields_total": run.FieldsTotal,
			"message":      "Audit run started. Poll /api/audits/:id for updates.",
		},
	})
}

func (h *AuditHandler) lookup(c *gin.Context) (*models.AuditRun, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid audit run ID format")
		return nil, false
	}
	run, err := h.runs.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Audit run not found")
			return nil, false
		}
		errorJSON(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error())
		return nil, false
	}
	return run, true
}

// GetAudit handles GET /api/audits/:id
func (h *AuditHandler) GetAudit(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}

	data := gin.H{"run": run}
	if run.Status == models.RunStatusCompleted {
		data["summary"] = h.runs.Summary(run)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetCheckpoint handles GET /api/audits/:id/checkpoint
func (h *AuditHandler) GetCheckpoint(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.storage == nil {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Checkpoint storage not configured")
		return
	}

	reader, err := h.storage.Get(c.Request.Context(), service.CheckpointKey(run.ID.String()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "No checkpoint written yet")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "DOWNLOAD_FAILED", fmt.Sprintf("Failed to read checkpoint: %v", err))
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, -1, "application/json", reader, nil)
}
