package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/webstore/internal/models"
)

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	p := env.seedProduct("mug", 9.5, 4)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(p.ID))
	require.NoError(t, env.Products.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "mug", resp.Name)
	require.Equal(t, 9.5, resp.Price)
	require.Equal(t, uint(4), resp.Quantity)
}

func TestGetProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/api/v1/products/99", nil)
	c.SetParamNames("id")
	c.SetParamValues("99")
	requireHTTPError(t, env.Products.GetProduct(c), http.StatusNotFound)
}

func TestGetProductsPagination(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 12; i++ {
		env.seedProduct(fmt.Sprintf("item-%d", i), 1, 1)
	}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products?page=2&size=5", nil)
	require.NoError(t, env.Products.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Page       int   `json:"page"`
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasPrev    bool  `json:"has_prev"`
			HasNext    bool  `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 5)
	require.Equal(t, 2, resp.Meta.Page)
	require.Equal(t, int64(12), resp.Meta.Total)
	require.Equal(t, int64(3), resp.Meta.TotalPages)
	require.True(t, resp.Meta.HasPrev)
	require.True(t, resp.Meta.HasNext)
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"name":        "mug",
		"description": "a mug",
		"price":       9.5,
		"quantity":    4,
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/products", body)
	require.NoError(t, env.Products.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.ID)
	require.Equal(t, "mug", resp.Name)

	require.Len(t, env.Producer.events, 1)
	require.Equal(t, "product_events", env.Producer.events[0].Topic)
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"price": 9.5}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/products", body)
	requireHTTPError(t, env.Products.CreateProduct(c), http.StatusBadRequest)
}

func TestPatchProduct(t *testing.T) {
	env := newTestEnv(t)

	p := env.seedProduct("mug", 9.5, 4)

	body := map[string]any{
		"name":     "big mug",
		"price":    12.0,
		"quantity": 7,
	}
	rec, c := env.doJSONRequest(http.MethodPatch, "/api/v1/admin/products/1", body)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(p.ID))
	require.NoError(t, env.Products.PatchProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "big mug", resp.Name)
	require.Equal(t, 12.0, resp.Price)
	require.Equal(t, uint(7), resp.Quantity)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)

	p := env.seedProduct("mug", 9.5, 4)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/admin/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(p.ID))
	require.NoError(t, env.Products.DeleteProduct(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDeleteProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodDelete, "/api/v1/admin/products/99", nil)
	c.SetParamNames("id")
	c.SetParamValues("99")
	requireHTTPError(t, env.Products.DeleteProduct(c), http.StatusNotFound)
}
