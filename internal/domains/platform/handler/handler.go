package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/service"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared/response"
)

// =====================================================
// PLATFORM HANDLER
// =====================================================

type PlatformHandler struct {
	platformService service.ServiceInterface
	clientURL       string
}

func NewPlatformHandler(platformService service.ServiceInterface, clientURL string) *PlatformHandler {
	return &PlatformHandler{
		platformService: platformService,
		clientURL:       strings.TrimRight(clientURL, "/"),
	}
}

// getUserID reads the id AuthMiddleware stored on the context.
func getUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

// =====================================================
// CONNECTION ENDPOINTS
// =====================================================

// ConnectSteam links a Steam account by id or profile name and syncs it
// POST /api/v1/platforms/steam/connect
func (h *PlatformHandler) ConnectSteam(c *gin.Context) {
	// Step 1: Get user ID
	userID, ok := getUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	// Step 2: Bind request body
	var req model.ConnectSteamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Step 3: Call service
	result, err := h.platformService.ConnectSteam(c.Request.Context(), userID, req)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListConnections returns the active connections
// GET /api/v1/platforms/connections
func (h *PlatformHandler) ListConnections(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	result, err := h.platformService.ListConnections(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Disconnect deactivates a connection; synced games stay in the library
// DELETE /api/v1/platforms/:platform
func (h *PlatformHandler) Disconnect(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	platform := c.Param("platform")
	if err := h.platformService.Disconnect(c.Request.Context(), userID, platform); err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": platform + " disconnected successfully"})
}

// SyncSteam pulls the Steam library now, or queues it with ?async=true
// POST /api/v1/platforms/steam/sync
func (h *PlatformHandler) SyncSteam(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		result, err := h.platformService.QueueSync(c.Request.Context(), userID)
		if err != nil {
			response.FromError(c, err, model.ErrorCode)
			return
		}
		response.Success(c, http.StatusAccepted, result)
		return
	}

	result, err := h.platformService.SyncNow(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Steam sync failed")
		if errors.Is(err, model.ErrSyncFailed) {
			response.ErrorResponse(c, http.StatusInternalServerError, "SYNC_FAILED", model.ErrSyncFailed.Error())
			return
		}
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// =====================================================
// STEAM SIGN-IN
// =====================================================

// SteamLogin returns the Steam OpenID URL for the frontend to navigate to
// GET /api/v1/auth/steam/login
func (h *PlatformHandler) SteamLogin(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	result, err := h.platformService.SteamLoginURL(userID)
	if err != nil {
		response.FromError(c, err, model.ErrorCode)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SteamCallback finishes the OpenID flow and sends the browser back to the
// client library page.
// GET /api/v1/auth/steam/callback
func (h *PlatformHandler) SteamCallback(c *gin.Context) {
	query := c.Request.URL.Query()

	result, err := h.platformService.CompleteSteamLogin(c.Request.Context(), query.Get("state"), query)
	if err != nil {
		log.Warn().Err(err).Msg("Steam sign-in failed")
		c.Redirect(http.StatusFound, h.libraryURL(url.Values{"steamError": {callbackErrorCode(err)}}))
		return
	}

	params := url.Values{"steamSuccess": {"true"}}
	if result.SyncFailed {
		params.Set("syncFailed", "true")
	} else {
		params.Set("gamesSynced", strconv.Itoa(result.GamesSynced))
	}
	c.Redirect(http.StatusFound, h.libraryURL(params))
}

func (h *PlatformHandler) libraryURL(params url.Values) string {
	return h.clientURL + "/library?" + params.Encode()
}

func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrSteamRejected):
		return "validation_failed"
	case errors.Is(err, model.ErrSteamUnavailable):
		return "steam_unavailable"
	default:
		return "save_failed"
	}
}
