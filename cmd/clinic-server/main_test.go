package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/config"
	"github.com/ayurclinic/clinic/internal/platform/auth"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:               env,
		StoreBackend:      config.BackendMemory,
		SessionSecret:     strings.Repeat("s", 32),
		SessionTTL:        time.Hour,
		AuthSigningKey:    strings.Repeat("k", 32),
		CORSOrigins:       []string{"http://localhost:3000"},
		RateLimitRPS:      1000,
		RateLimitBurst:    1000,
		LoginRateLimitRPS: 1000,
		RequestTimeout:    30 * time.Second,
	}
}

func testServer(t *testing.T, env string) *echo.Echo {
	t.Helper()
	deps, err := openDependencies(context.Background(), testConfig(env), zerolog.Nop())
	if err != nil {
		t.Fatalf("openDependencies: %v", err)
	}
	t.Cleanup(deps.Close)
	return newServer(deps)
}

func do(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func doctorToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

var newPatientBody = map[string]interface{}{
	"name":             "Asha Rao",
	"age":              34,
	"gender":           "Female",
	"dominantPrakriti": "Pitta",
	"agni":             "Tikshna",
	"bp":               "120/80",
}

type createdResponse struct {
	Patient struct {
		ID      string `json:"id"`
		LoginID string `json:"loginId"`
	} `json:"patient"`
	Password string `json:"password"`
}

func TestServer_Health(t *testing.T) {
	e := testServer(t, "development")

	rec := do(t, e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = do(t, e, http.MethodGet, "/health/db", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/db, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id on every response")
	}
}

func TestServer_PatientJourney(t *testing.T) {
	e := testServer(t, "development")

	rec := do(t, e, http.MethodPost, "/api/doctor/patients", "", newPatientBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createdResponse
	decode(t, rec, &created)
	if created.Password == "" || created.Patient.LoginID == "" {
		t.Fatalf("expected one-time credentials, got %+v", created)
	}

	rec = do(t, e, http.MethodPost, "/api/doctor/patients/"+created.Patient.ID+"/diet-charts", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/patient/login", "", map[string]string{
		"loginId":  created.Patient.LoginID,
		"password": created.Password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		Token string `json:"token"`
	}
	decode(t, rec, &session)
	if session.Token == "" {
		t.Fatal("expected a session token")
	}

	rec = do(t, e, http.MethodGet, "/api/patient/profile", session.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("profile must not expose the password hash")
	}

	rec = do(t, e, http.MethodGet, "/api/patient/diet-charts", session.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("charts: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var charts []map[string]interface{}
	decode(t, rec, &charts)
	if len(charts) != 1 {
		t.Fatalf("expected 1 chart, got %d", len(charts))
	}

	rec = do(t, e, http.MethodGet, "/api/patient/diet-charts/5", session.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing chart: expected 404, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/api/patient/diet-charts/0/download", session.Token, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("download without renderer: expected 502, got %d", rec.Code)
	}
}

func TestServer_WrongPasswordAndUnknownLoginLookAlike(t *testing.T) {
	e := testServer(t, "development")

	rec := do(t, e, http.MethodPost, "/api/doctor/patients", "", newPatientBody)
	var created createdResponse
	decode(t, rec, &created)

	wrong := do(t, e, http.MethodPost, "/api/patient/login", "", map[string]string{
		"loginId": created.Patient.LoginID, "password": "not-the-password",
	})
	unknown := do(t, e, http.MethodPost, "/api/patient/login", "", map[string]string{
		"loginId": "PAT000000000", "password": "not-the-password",
	})
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestServer_PortalRequiresSession(t *testing.T) {
	e := testServer(t, "development")

	rec := do(t, e, http.MethodGet, "/api/patient/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", rec.Code)
	}
	rec = do(t, e, http.MethodGet, "/api/patient/profile", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a bad session token, got %d", rec.Code)
	}
}

func TestServer_ProductionRequiresPractitionerToken(t *testing.T) {
	e := testServer(t, "staging")

	rec := do(t, e, http.MethodGet, "/api/doctor/patients", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/api/doctor/patients", doctorToken(t, "dr-nair"), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without the doctor role, got %d", rec.Code)
	}

	token := doctorToken(t, "dr-nair", auth.RoleDoctor)
	rec = do(t, e, http.MethodPost, "/api/doctor/patients", token, newPatientBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createdResponse
	decode(t, rec, &created)

	other := doctorToken(t, "dr-iyer", auth.RoleDoctor)
	rec = do(t, e, http.MethodGet, "/api/doctor/patients/"+created.Patient.ID, other, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another practitioner's patient, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", rec.Code)
	}
}

func TestReadFoods(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foods.json")
	if err := os.WriteFile(path, []byte(`[{"food_id":"F001","name":"Masala Dosa"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	foods, err := readFoods(path)
	if err != nil {
		t.Fatalf("readFoods: %v", err)
	}
	if len(foods) != 1 || foods[0].Name != "Masala Dosa" {
		t.Errorf("unexpected foods %+v", foods)
	}

	if _, err := readFoods(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
}
