package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
)

type fakeService struct {
	listFn   func(userID uuid.UUID, req model.ListLibraryRequest) (*model.LibraryListResponse, error)
	statusFn func(userID, recordID uuid.UUID, req model.UpdateStatusRequest) (*model.UpdateStatusResponse, error)
	removeFn func(userID, recordID uuid.UUID) error
	manualFn func(userID uuid.UUID, req model.ManualAddRequest) (*model.LibraryItemResponse, error)
	searchFn func(query string) ([]model.SearchResult, error)
}

func (f *fakeService) ListLibrary(_ context.Context, userID uuid.UUID, req model.ListLibraryRequest) (*model.LibraryListResponse, error) {
	return f.listFn(userID, req)
}

func (f *fakeService) GetLibraryItem(context.Context, uuid.UUID, uuid.UUID) (*model.LibraryDetailResponse, error) {
	return nil, model.ErrRecordNotFound
}

func (f *fakeService) UpdateStatus(_ context.Context, userID, recordID uuid.UUID, req model.UpdateStatusRequest) (*model.UpdateStatusResponse, error) {
	return f.statusFn(userID, recordID, req)
}

func (f *fakeService) RemoveGame(_ context.Context, userID, recordID uuid.UUID) error {
	return f.removeFn(userID, recordID)
}

func (f *fakeService) AddManualGame(_ context.Context, userID uuid.UUID, req model.ManualAddRequest) (*model.LibraryItemResponse, error) {
	return f.manualFn(userID, req)
}

func (f *fakeService) GetStats(context.Context, uuid.UUID) (*model.StatsResponse, error) {
	return &model.StatsResponse{GamesByPlatform: []model.PlatformStat{}}, nil
}

func (f *fakeService) SearchCatalog(_ context.Context, query string) ([]model.SearchResult, error) {
	return f.searchFn(query)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupRouter(svc *fakeService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewLibraryHandler(svc)

	r := gin.New()
	r.GET("/games/search", h.SearchGames)

	authed := r.Group("/library")
	authed.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set("userID", userID)
		}
		c.Next()
	})
	authed.GET("", h.ListLibrary)
	authed.GET("/stats", h.GetStats)
	authed.GET("/:id", h.GetLibraryItem)
	authed.PUT("/:id/status", h.UpdateStatus)
	authed.DELETE("/:id", h.RemoveGame)
	authed.POST("/manual", h.AddManualGame)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestListLibrary_BindsQuery(t *testing.T) {
	userID := uuid.New()
	var got model.ListLibraryRequest
	svc := &fakeService{listFn: func(id uuid.UUID, req model.ListLibraryRequest) (*model.LibraryListResponse, error) {
		assert.Equal(t, userID, id)
		got = req
		return &model.LibraryListResponse{Games: []model.LibraryItemResponse{}}, nil
	}}

	w, env := do(t, setupRouter(svc, userID), http.MethodGet, "/library?platform=Steam&sortBy=title&sortOrder=asc&search=half", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Steam", got.Platform)
	assert.Equal(t, "title", got.SortBy)
	assert.Equal(t, "asc", got.SortOrder)
	assert.Equal(t, "half", got.Search)
}

func TestListLibrary_Unauthorized(t *testing.T) {
	w, env := do(t, setupRouter(&fakeService{}, uuid.Nil), http.MethodGet, "/library", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestGetLibraryItem_Errors(t *testing.T) {
	r := setupRouter(&fakeService{}, uuid.New())

	w, env := do(t, r, http.MethodGet, "/library/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/library/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestUpdateStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid status", fmt.Errorf("%w: status: must be a valid value", model.ErrInvalidStatus), http.StatusBadRequest, "INVALID_STATUS"},
		{"not found", model.ErrRecordNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{statusFn: func(uuid.UUID, uuid.UUID, model.UpdateStatusRequest) (*model.UpdateStatusResponse, error) {
				return nil, tt.err
			}}
			w, env := do(t, setupRouter(svc, uuid.New()), http.MethodPut, "/library/"+uuid.NewString()+"/status", `{"status":"Done"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotContains(t, env.Error.Message, "db down")
		})
	}
}

func TestUpdateStatus_OK(t *testing.T) {
	recordID := uuid.New()
	svc := &fakeService{statusFn: func(_ uuid.UUID, id uuid.UUID, req model.UpdateStatusRequest) (*model.UpdateStatusResponse, error) {
		return &model.UpdateStatusResponse{ID: id, GameTitle: "Celeste", Status: req.Status}, nil
	}}

	w, env := do(t, setupRouter(svc, uuid.New()), http.MethodPut, "/library/"+recordID.String()+"/status", `{"status":"Completed"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var data model.UpdateStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, recordID, data.ID)
	assert.Equal(t, "Completed", data.Status)
}

func TestRemoveGame(t *testing.T) {
	svc := &fakeService{removeFn: func(uuid.UUID, uuid.UUID) error { return nil }}
	w, env := do(t, setupRouter(svc, uuid.New()), http.MethodDelete, "/library/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestAddManualGame(t *testing.T) {
	var got model.ManualAddRequest
	svc := &fakeService{manualFn: func(_ uuid.UUID, req model.ManualAddRequest) (*model.LibraryItemResponse, error) {
		got = req
		return &model.LibraryItemResponse{ID: uuid.New(), GameTitle: req.Title, Platform: req.Platform}, nil
	}}
	r := setupRouter(svc, uuid.New())

	w, _ := do(t, r, http.MethodPost, "/library/manual", `{"title":"Hades","platform":"Switch","playtime_hours":"2.5"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Hades", got.Title)
	require.NotNil(t, got.PlaytimeHours)
	assert.Equal(t, "2.5", got.PlaytimeHours.String())

	svc.manualFn = func(uuid.UUID, model.ManualAddRequest) (*model.LibraryItemResponse, error) {
		return nil, model.ErrDuplicateRecord
	}
	w, env := do(t, r, http.MethodPost, "/library/manual", `{"title":"Hades","platform":"Switch"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_GAME", env.Error.Code)

	w, env = do(t, r, http.MethodPost, "/library/manual", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestGetStats_RouteNotShadowedByID(t *testing.T) {
	w, env := do(t, setupRouter(&fakeService{}, uuid.New()), http.MethodGet, "/library/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestSearchGames(t *testing.T) {
	svc := &fakeService{searchFn: func(q string) ([]model.SearchResult, error) {
		switch q {
		case "h":
			return nil, model.ErrSearchQueryTooShort
		case "down":
			return nil, fmt.Errorf("%w: timeout", model.ErrMetadataUnavailable)
		}
		return []model.SearchResult{{IGDBID: 1113, Title: "Hades"}}, nil
	}}
	r := setupRouter(svc, uuid.Nil)

	w, env := do(t, r, http.MethodGet, "/games/search?query=hades", "")
	require.Equal(t, http.StatusOK, w.Code)
	var results []model.SearchResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	assert.Len(t, results, 1)

	w, env = do(t, r, http.MethodGet, "/games/search?query=h", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/games/search?query=down", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "METADATA_UNAVAILABLE", env.Error.Code)
}
