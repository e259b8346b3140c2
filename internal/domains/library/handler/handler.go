package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/service"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared/response"
)

var errUnauthorized = errors.New("unauthorized")

// =====================================================
// LIBRARY HANDLER
// =====================================================

type LibraryHandler struct {
	libraryService service.ServiceInterface
}

func NewLibraryHandler(libraryService service.ServiceInterface) *LibraryHandler {
	return &LibraryHandler{
		libraryService: libraryService,
	}
}

// =====================================================
// HELPER FUNCTIONS
// =====================================================

// getUserID reads the id AuthMiddleware stored on the context.
func getUserID(c *gin.Context) (uuid.UUID, error) {
	v, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, errUnauthorized
	}
	userID, ok := v.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, errUnauthorized
	}
	return userID, nil
}

func parseRecordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "INVALID_ID", "Invalid library item ID")
		return uuid.Nil, false
	}
	return id, true
}

// =====================================================
// LIBRARY ENDPOINTS
// =====================================================

// ListLibrary lists the caller's games
// GET /api/v1/library
func (h *LibraryHandler) ListLibrary(c *gin.Context) {
	// Step 1: Get user ID
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	// Step 2: Bind query
	var req model.ListLibraryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Step 3: Call service
	result, err := h.libraryService.ListLibrary(c.Request.Context(), userID, req)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetLibraryItem returns one record with its catalog entry
// GET /api/v1/library/:id
func (h *LibraryHandler) GetLibraryItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "Unauthorized")
		return
	}
	recordID, ok := parseRecordID(c)
	if !ok {
		return
	}

	result, err := h.libraryService.GetLibraryItem(c.Request.Context(), userID, recordID)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// UpdateStatus sets the play status
// PUT /api/v1/library/:id/status
func (h *LibraryHandler) UpdateStatus(c *gin.Context) {
	// Step 1: Get user ID
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	// Step 2: Parse record ID
	recordID, ok := parseRecordID(c)
	if !ok {
		return
	}

	// Step 3: Bind request body
	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Step 4: Call service
	result, err := h.libraryService.UpdateStatus(c.Request.Context(), userID, recordID, req)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// RemoveGame deletes a record owned by the caller
// DELETE /api/v1/library/:id
func (h *LibraryHandler) RemoveGame(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "Unauthorized")
		return
	}
	recordID, ok := parseRecordID(c)
	if !ok {
		return
	}

	if err := h.libraryService.RemoveGame(c.Request.Context(), userID, recordID); err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Game removed from library"})
}

// AddManualGame adds a game no connected platform reports
// POST /api/v1/library/manual
func (h *LibraryHandler) AddManualGame(c *gin.Context) {
	// Step 1: Get user ID
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	// Step 2: Bind request body
	var req model.ManualAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Step 3: Call service
	result, err := h.libraryService.AddManualGame(c.Request.Context(), userID, req)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetStats summarizes the caller's library
// GET /api/v1/library/stats
func (h *LibraryHandler) GetStats(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	result, err := h.libraryService.GetStats(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SearchGames queries the metadata provider
// GET /api/v1/games/search?query=
func (h *LibraryHandler) SearchGames(c *gin.Context) {
	results, err := h.libraryService.SearchCatalog(c.Request.Context(), c.Query("query"))
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, results)
}
