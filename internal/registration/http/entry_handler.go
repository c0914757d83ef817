// Package http provides HTTP handlers for registration entry operations.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/registrations/internal/httputil"
	"github.com/allisson/registrations/internal/registration/http/dto"
	"github.com/allisson/registrations/internal/registration/usecase"
	customValidation "github.com/allisson/registrations/internal/validation"
)

// EntryHandler handles HTTP requests for registration entries.
type EntryHandler struct {
	entryUseCase usecase.EntryUseCase
	logger       *slog.Logger
}

// NewEntryHandler creates a new entry handler.
func NewEntryHandler(entryUseCase usecase.EntryUseCase, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{
		entryUseCase: entryUseCase,
		logger:       logger,
	}
}

// CreateHandler creates a registration entry.
// POST /v1/registrations
// Returns 201 Created with the entry: the mobile number field carries the
// ciphertext. The key and record writes may still be in flight when the
// response is sent.
func (h *EntryHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleError(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	entry, err := h.entryUseCase.Create(c.Request.Context(), req.MobileNumber, req.ServicePrefix)
	if err != nil {
		httputil.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapEntryToResponse(entry))
}
