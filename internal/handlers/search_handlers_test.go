package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndmitriev/estore/internal/models"
	"github.com/ndmitriev/estore/internal/repo"
)

func newSearchHandler(t *testing.T) (*SearchHandler, *fakeIndex) {
	db := initTestDB(t)
	index := &fakeIndex{}
	h := &SearchHandler{Repo: &repo.GormRepo{DB: db}, Index: index}

	for i, name := range []string{"Widget", "Gadget", "Gizmo"} {
		require.NoError(t, db.Create(&models.Product{
			ID:    uint(i + 1),
			Name:  name,
			Price: decimal.NewFromInt(int64(i + 1)),
		}).Error)
	}
	return h, index
}

func TestSearch_RankedResults(t *testing.T) {
	h, index := newSearchHandler(t)
	index.ranked = []uint{3, 1}

	rec, c := doJSONRequest(t, http.MethodGet, "/api/search?q=widget", nil)
	require.NoError(t, h.Handler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total    int              `json:"total"`
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, uint(3), resp.Products[0].ID)
	assert.Equal(t, uint(1), resp.Products[1].ID)
}

func TestSearch_DeletedProductDropsOut(t *testing.T) {
	h, index := newSearchHandler(t)

	// The index still references product 2 but the row is gone: the
	// stale hit must not resurface in results.
	index.ranked = []uint{2, 1}
	require.NoError(t, h.Repo.DB.Delete(&models.Product{}, 2).Error)

	rec, c := doJSONRequest(t, http.MethodGet, "/api/search?q=gadget", nil)
	require.NoError(t, h.Handler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, uint(1), resp.Products[0].ID)
}

func TestSearch_BackendDownDegradesToEmpty(t *testing.T) {
	h, index := newSearchHandler(t)
	index.ranked = nil // unreachable backend yields no ids

	rec, c := doJSONRequest(t, http.MethodGet, "/api/search?q=widget", nil)
	require.NoError(t, h.Handler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total    int              `json:"total"`
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Products)
}

func TestSearch_MissingQuery(t *testing.T) {
	h, _ := newSearchHandler(t)

	_, c := doJSONRequest(t, http.MethodGet, "/api/search", nil)
	err := h.Handler(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
}
