package recipes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kitchen-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	f := newFixture(t)
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(zap.NewNop()), Immutable: true})
	app.Get("/ingredients/recipes/:sku", RecipesUsingIngredientHandler(f.svc))
	app.Get("/recipes", ListRecipesHandler(f.svc, 100))
	app.Post("/recipes", CreateRecipeHandler(f.svc))
	app.Get("/recipes/ingredients/:recipe_id", ListRecipeIngredientsHandler(f.svc))
	app.Get("/recipes/:id", GetRecipeHandler(f.svc))
	app.Put("/recipes/:id", UpdateRecipeHandler(f.svc))
	app.Delete("/recipes/:id", DeleteRecipeHandler(f.svc))
	app.Get("/recipes/:id/cost", RecipeCostHandler(f.svc))
	app.Post("/recipes/:id/ingredients", AddRecipeIngredientHandler(f.svc))
	app.Put("/recipes/:id/ingredients/:sku", SetRecipeIngredientHandler(f.svc))
	app.Delete("/recipes/:id/ingredients/:sku", RemoveRecipeIngredientHandler(f.svc))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestRecipeHandlers_Lifecycle(t *testing.T) {
	app := newTestApp(t)

	code, body := doJSON(t, app, http.MethodPost, "/recipes", `{"name":"Tomato Soup","category":"Starters","cost":4.5}`)
	require.Equal(t, fiber.StatusCreated, code, body)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, true, body["active"])

	code, body = doJSON(t, app, http.MethodPost, "/recipes", `{"name":"Bad","cost":-1}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["error"], "cost")

	code, body = doJSON(t, app, http.MethodGet, "/recipes/ingredients/1", "")
	require.Equal(t, fiber.StatusOK, code, body)
	assert.EqualValues(t, 1, body["recipe_id"])
	assert.Equal(t, []any{}, body["ingredients"])

	code, body = doJSON(t, app, http.MethodPost, "/recipes/1/ingredients", `{"ingredient_sku":"TOM-1","quantity_being_used":0.4}`)
	require.Equal(t, fiber.StatusCreated, code, body)

	code, _ = doJSON(t, app, http.MethodPost, "/recipes/1/ingredients", `{"ingredient_sku":"TOM-1","quantity_being_used":0.4}`)
	assert.Equal(t, fiber.StatusConflict, code)

	code, body = doJSON(t, app, http.MethodPut, "/recipes/1/ingredients/TOM-1", `{"quantity_being_used":0.5}`)
	require.Equal(t, fiber.StatusOK, code, body)
	assert.EqualValues(t, 0.5, body["quantity_being_used"])

	code, body = doJSON(t, app, http.MethodGet, "/recipes/1/cost", "")
	require.Equal(t, fiber.StatusOK, code, body)
	assert.EqualValues(t, 1.5, body["derived_cost"])

	code, body = doJSON(t, app, http.MethodGet, "/ingredients/recipes/TOM-1", "")
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Len(t, body["recipes"], 1)

	code, _ = doJSON(t, app, http.MethodDelete, "/recipes/1/ingredients/TOM-1", "")
	assert.Equal(t, fiber.StatusNoContent, code)

	code, body = doJSON(t, app, http.MethodPut, "/recipes/1", `{"active":false}`)
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Equal(t, false, body["active"])

	code, body = doJSON(t, app, http.MethodGet, "/recipes?active=false", "")
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Len(t, body["data"], 1)

	code, _ = doJSON(t, app, http.MethodDelete, "/recipes/1", "")
	assert.Equal(t, fiber.StatusNoContent, code)

	code, _ = doJSON(t, app, http.MethodGet, "/recipes/1", "")
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestRecipeHandlers_BadInput(t *testing.T) {
	app := newTestApp(t)

	code, body := doJSON(t, app, http.MethodGet, "/recipes?active=maybe", "")
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "active must be true, false or all", body["error"])

	code, _ = doJSON(t, app, http.MethodGet, "/recipes/abc", "")
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = doJSON(t, app, http.MethodGet, "/recipes/ingredients/42", "")
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = doJSON(t, app, http.MethodGet, "/ingredients/recipes/NOPE", "")
	assert.Equal(t, fiber.StatusNotFound, code)
}
