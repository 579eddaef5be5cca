package obligation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finora/finora/internal/event_bus"
	"github.com/finora/finora/pkg/user"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withUser(u user.User, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(user.WithUser(r.Context(), u)))
	})
}

func setupHandlerTest(t *testing.T) (http.Handler, *ServiceImpl) {
	t.Helper()
	service := NewService(NewRepositoryStub(), event_bus.NewEventBus())
	handler := NewHandler(service)

	r := mux.NewRouter()
	r.HandleFunc("/api/recurring", handler.ListExpenses).Methods("GET")
	r.HandleFunc("/api/recurring", handler.CreateExpense).Methods("POST")
	r.HandleFunc("/api/recurring/{uid}", handler.GetExpense).Methods("GET")
	r.HandleFunc("/api/recurring/{uid}", handler.UpdateExpense).Methods("PUT")
	r.HandleFunc("/api/recurring/{uid}", handler.DeleteExpense).Methods("DELETE")
	r.HandleFunc("/api/category", handler.ListCategories).Methods("GET")
	r.HandleFunc("/api/category", handler.CreateCategory).Methods("POST")
	return withUser(user.User{Id: 5, Uid: "user-5"}, r), service
}

func doRequest(h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateAndGetExpense(t *testing.T) {
	// given
	h, _ := setupHandlerTest(t)
	payload := `{"description":"Streaming","amount":"39.90","type":"subscription","start_date":"2025-01-05","frequency":"monthly"}`

	// when
	w := doRequest(h, http.MethodPost, "/api/recurring", payload)

	// then
	require.Equal(t, http.StatusCreated, w.Code)
	var created RecurringExpenseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, "2025-01-05", created.StartDate)
	assert.Equal(t, "39.9", created.Amount.String())
	require.NotNil(t, created.Active)
	assert.True(t, *created.Active)

	w = doRequest(h, http.MethodGet, "/api/recurring/"+created.Id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var fetched RecurringExpenseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fetched))
	assert.Equal(t, created.Id, fetched.Id)
	assert.Empty(t, fetched.Transactions)
}

func TestHandler_ValidationErrors(t *testing.T) {
	h, _ := setupHandlerTest(t)

	tests := []struct {
		name    string
		method  string
		path    string
		payload string
		status  int
	}{
		{"malformed json", http.MethodPost, "/api/recurring", `{`, http.StatusBadRequest},
		{"invalid date", http.MethodPost, "/api/recurring", `{"description":"x","amount":1,"type":"subscription","start_date":"2025-13-01","frequency":"monthly"}`, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/recurring", `{"description":"x","amount":1,"type":"weekly"}`, http.StatusBadRequest},
		{"installment without dates", http.MethodPost, "/api/recurring", `{"description":"x","amount":1,"type":"installment","transactions":[]}`, http.StatusBadRequest},
		{"invalid uid", http.MethodGet, "/api/recurring/not-a-uuid", "", http.StatusBadRequest},
		{"unknown uid", http.MethodGet, "/api/recurring/0a4c2a3e-5b0e-4a49-9f3c-1df2a0e0a111", "", http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/recurring/0a4c2a3e-5b0e-4a49-9f3c-1df2a0e0a111", "", http.StatusNotFound},
		{"empty category name", http.MethodPost, "/api/category", `{"name":"  "}`, http.StatusBadRequest},
		{"invalid active filter", http.MethodGet, "/api/recurring?active=yes", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(h, tt.method, tt.path, tt.payload)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHandler_UpdateListDelete(t *testing.T) {
	// given
	h, service := setupHandlerTest(t)
	ctx := user.WithUser(context.Background(), user.User{Id: 5})
	created, err := service.CreateExpense(ctx, newSubscription("Streaming"))
	require.NoError(t, err)
	path := "/api/recurring/" + created.Uid.String()

	// when
	w := doRequest(h, http.MethodPut, path,
		`{"description":"Notebook","amount":450,"type":"installment","active":false,"transactions":[{"date":"2025-02-01"}]}`)

	// then
	require.Equal(t, http.StatusOK, w.Code)
	var updated RecurringExpenseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, created.Uid.String(), updated.Id)
	assert.Equal(t, []TransactionDTO{{Date: "2025-02-01"}}, updated.Transactions)
	assert.Empty(t, updated.StartDate)

	w = doRequest(h, http.MethodGet, "/api/recurring?active=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doRequest(h, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandler_EmptyCategoryName(t *testing.T) {
	h, _ := setupHandlerTest(t)

	w := doRequest(h, http.MethodPost, "/api/category", `{"name":"  "}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid category","details":"invalid category: name is required"}`, w.Body.String())
}

func TestHandler_Categories(t *testing.T) {
	h, _ := setupHandlerTest(t)

	w := doRequest(h, http.MethodPost, "/api/category", `{"name":"Home","color":"#00f","icon":"house"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(h, http.MethodGet, "/api/category", "")
	require.Equal(t, http.StatusOK, w.Code)
	var categories []CategoryDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "Home", categories[0].Name)
}

func TestHandler_RequiresUser(t *testing.T) {
	handler := NewHandler(NewService(NewRepositoryStub(), nil))
	w := httptest.NewRecorder()

	handler.ListExpenses(w, httptest.NewRequest(http.MethodGet, "/api/recurring", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
