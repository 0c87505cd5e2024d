package table_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/auth"
	"ms-pos/internal/database"
	"ms-pos/internal/events"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/tables"
	tabledb "ms-pos/internal/tables/db"
	"ms-pos/internal/tables/table_api"
)

type staticOrders map[string][]string

func (s staticOrders) LiveOrderIDsByTable(context.Context) (map[string][]string, error) {
	return s, nil
}

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type tableJSON struct {
	ID       string   `json:"id"`
	Number   int      `json:"number"`
	Status   string   `json:"status"`
	WaiterID *string  `json:"waiter_id"`
	OrderIDs []string `json:"order_ids"`
}

func setup(t *testing.T, orders staticOrders) (http.Handler, *tables.TableService) {
	log := logger.NewConsoleLogger(io.Discard)
	svc := tables.NewTableService(&tabledb.DB{Bun: database.NewTestDB(t)}, events.Nop{}, log)
	h := table_api.NewHandler(svc, orders, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			actor := models.Actor{ID: req.Header.Get("X-Actor"), Role: models.Role(req.Header.Get("X-Role"))}
			next.ServeHTTP(w, req.WithContext(auth.WithActor(req.Context(), actor)))
		})
	})
	r.Route("/api/tables", h.Routes)
	return r, svc
}

func do(t *testing.T, h http.Handler, actor models.Actor, method, path string, body interface{}) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Actor", actor.ID)
	req.Header.Set("X-Role", string(actor.Role))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

var (
	admin  = models.Actor{ID: "admin", Role: models.RoleAdmin}
	waiter = models.Actor{ID: "w1", Role: models.RoleWaiter}
	other  = models.Actor{ID: "w2", Role: models.RoleWaiter}
)

func TestTableAdministration(t *testing.T) {
	h, _ := setup(t, nil)

	code, _ := do(t, h, waiter, http.MethodPost, "/api/tables/", map[string]int{"number": 1})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := do(t, h, admin, http.MethodPost, "/api/tables/", map[string]int{"number": 1})
	require.Equal(t, http.StatusCreated, code)
	var created tableJSON
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "free", created.Status)

	code, env = do(t, h, admin, http.MethodPost, "/api/tables/", map[string]int{"number": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "conflict", env.Kind)

	code, _ = do(t, h, admin, http.MethodPut, "/api/tables/"+created.ID, map[string]int{"number": 9})
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, admin, http.MethodDelete, "/api/tables/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, h, admin, http.MethodGet, "/api/tables/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAssignAndRelease(t *testing.T) {
	h, svc := setup(t, nil)
	tbl, err := svc.Create(context.Background(), 4)
	require.NoError(t, err)

	code, env := do(t, h, waiter, http.MethodPost, "/api/tables/"+tbl.ID+"/assign", nil)
	require.Equal(t, http.StatusOK, code)
	var got tableJSON
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotNil(t, got.WaiterID)
	assert.Equal(t, "w1", *got.WaiterID)

	code, _ = do(t, h, other, http.MethodPost, "/api/tables/"+tbl.ID+"/assign", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, other, http.MethodPost, "/api/tables/"+tbl.ID+"/release", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, waiter, http.MethodPost, "/api/tables/"+tbl.ID+"/release", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestListIncludesLiveOrders(t *testing.T) {
	orders := staticOrders{}
	h, svc := setup(t, orders)
	tbl, err := svc.Create(context.Background(), 2)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 1)
	require.NoError(t, err)
	orders[tbl.ID] = []string{"o1", "o2"}

	code, env := do(t, h, waiter, http.MethodGet, "/api/tables/", nil)
	require.Equal(t, http.StatusOK, code)
	var list []tableJSON
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Number)
	assert.Empty(t, list[0].OrderIDs)
	assert.Equal(t, []string{"o1", "o2"}, list[1].OrderIDs)
}
