package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-results-service/internal/app"
	"quiz-results-service/internal/infra/memory"
)

func newTestMux() (*http.ServeMux, *app.ParticipantService) {
	store := memory.NewParticipantStore()
	service := app.NewParticipantService(store, nil, app.NewRankingBroker())
	mux := http.NewServeMux()
	NewHandler(service).Register(mux)
	mux.HandleFunc("GET /ws/ranking", NewWSHandler(service).ServeWS)
	return mux, service
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func registrationBody(name string) map[string]any {
	return map[string]any{
		"name":            name,
		"email":           name + "@example.com",
		"role":            "broker",
		"phone":           "11 98765-4321",
		"managingCompany": "Acme Consortia",
		"state":           "SP",
		"city":            "Campinas",
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestMux()
	rec, body := doJSON(t, mux, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "online" || body["version"] != Version {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestCreateUser(t *testing.T) {
	mux, _ := newTestMux()

	rec, body := doJSON(t, mux, http.MethodPost, "/api/users", registrationBody("Ana"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", rec.Code, body)
	}
	if body["success"] != true || body["userId"] == "" {
		t.Fatalf("expected success with userId, got %v", body)
	}

	rec, body = doJSON(t, mux, http.MethodPost, "/api/users", map[string]any{"name": "Ana"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
}

func TestGetUserNotFound(t *testing.T) {
	mux, _ := newTestMux()
	rec, body := doJSON(t, mux, http.MethodGet, "/api/users/unknown-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
}

func TestListUsersAndCount(t *testing.T) {
	mux, _ := newTestMux()
	doJSON(t, mux, http.MethodPost, "/api/users", registrationBody("Ana"))
	doJSON(t, mux, http.MethodPost, "/api/users", registrationBody("Bo"))

	rec, body := doJSON(t, mux, http.MethodGet, "/api/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["total"] != float64(2) {
		t.Fatalf("expected total 2, got %v", body["total"])
	}
}

func TestSubmitAnswersFlow(t *testing.T) {
	mux, _ := newTestMux()
	_, created := doJSON(t, mux, http.MethodPost, "/api/users", registrationBody("Ana"))
	id := created["userId"].(string)

	rec, body := doJSON(t, mux, http.MethodPut, "/api/users/"+id+"/result", map[string]any{
		"answers": []map[string]any{
			{"question": "Q1", "answer": "42", "isCorrect": true},
		},
		"score":          1,
		"elapsedSeconds": 80,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	user := body["user"].(map[string]any)
	if user["score"] != float64(1) || user["elapsedSeconds"] != float64(80) {
		t.Fatalf("unexpected updated user: %v", user)
	}
}

func TestRankingEndpoint(t *testing.T) {
	mux, _ := newTestMux()

	doJSON(t, mux, http.MethodPost, "/api/results", resultBody("Bo", 8, 120))
	doJSON(t, mux, http.MethodPost, "/api/results", resultBody("Cy", 8, 90))

	rec, body := doJSON(t, mux, http.MethodGet, "/api/ranking", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ranking := body["ranking"].([]any)
	if len(ranking) != 2 {
		t.Fatalf("expected 2 entries, got %v", ranking)
	}
	first := ranking[0].(map[string]any)
	if first["name"] != "Cy" {
		t.Fatalf("expected Cy first (same score, faster), got %v", first)
	}
	if _, hasID := first["id"]; hasID {
		t.Fatalf("ranking entries must not expose ids: %v", first)
	}

	rec, body = doJSON(t, mux, http.MethodGet, "/api/ranking?limit=1", nil)
	if rec.Code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("expected bounded ranking, got %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/ranking?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestFindExistingEndpoint(t *testing.T) {
	mux, _ := newTestMux()
	doJSON(t, mux, http.MethodPost, "/api/users", registrationBody("Dee"))

	rec, body := doJSON(t, mux, http.MethodGet, "/api/users/search?name=dee", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["name"] != "Dee" {
		t.Fatalf("expected Dee, got %v", body["user"])
	}

	rec, body = doJSON(t, mux, http.MethodGet, "/api/users/search?name=ghost", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("no match must stay 200, got %d", rec.Code)
	}
	if body["user"] != nil {
		t.Fatalf("expected null user on no match, got %v", body["user"])
	}
}

func TestResetEndpoint(t *testing.T) {
	mux, _ := newTestMux()
	_, created := doJSON(t, mux, http.MethodPost, "/api/results", resultBody("Eva", 7, 140))
	id := created["userId"].(string)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/users/"+id+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	user := body["user"].(map[string]any)
	if user["score"] != float64(0) || user["elapsedSeconds"] != float64(0) {
		t.Fatalf("expected zeroed record, got %v", user)
	}

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/users/unknown/reset", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func resultBody(name string, score, elapsed int) map[string]any {
	body := registrationBody(name)
	body["score"] = score
	body["elapsedSeconds"] = elapsed
	return body
}
