package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pet-clinical-history/internal/adapters/mail/logmail"
	"pet-clinical-history/internal/domain/pets"
	"pet-clinical-history/internal/platform/config"
	"pet-clinical-history/internal/router"

	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"
)

const (
	staffID = "staff-1"
	adminID = "admin-1"
)

func newServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	return newServerWith(t, router.Options{Config: cfg})
}

func newHandler(t *testing.T, opts router.Options) http.Handler {
	t.Helper()
	h, err := router.NewRouter(opts)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return h
}

func newServerWith(t *testing.T, opts router.Options) *httptest.Server {
	t.Helper()
	cfg := opts.Config
	if cfg.PhotoDir == "" {
		cfg.PhotoDir = t.TempDir()
	}
	if cfg.JWTSigningKey == "" {
		cfg.JWTSigningKey = "test-signing-key"
	}
	if cfg.VerifyEmailLimit == 0 {
		cfg.VerifyEmailLimit = 5
		cfg.VerifyEmailWindow = time.Minute
	}
	opts.Config = cfg
	ts := httptest.NewServer(newHandler(t, opts))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_PetLifecycle(t *testing.T) {
	ts := newServer(t, config.Config{DevAuth: true})

	// 1) Staff registra al dueño y su mascota
	ownerID := createOwner(t, ts.URL, "ana@example.com")
	petID := createPet(t, ts.URL, ownerID, map[string]any{
		"name":       "Milo",
		"species":    "dog",
		"breed":      "mixed",
		"sex":        "male",
		"birth_date": "2020-03-01",
	})

	// 2) Historial: dos vacunas y un tratamiento con tres medicaciones
	for _, against := range []string{"rabies", "parvo"} {
		createRecord(t, ts.URL, "/pets/"+petID+"/records/vaccination-logs", map[string]any{
			"date":    "2024-01-10",
			"details": map[string]any{"against": against},
		})
	}
	treatmentID := createRecord(t, ts.URL, "/pets/"+petID+"/records/treatments", map[string]any{
		"details": map[string]any{"title": "Otitis"},
	})
	for _, med := range []string{"a", "b", "c"} {
		createRecord(t, ts.URL, "/treatments/"+treatmentID+"/records/medications", map[string]any{
			"details": map[string]any{"medicine_name": "med-" + med, "dosage": "5ml", "am": true},
		})
	}
	expectRecords(t, ts.URL, "/pets/"+petID+"/records/vaccination-logs", 2)
	expectRecords(t, ts.URL, "/treatments/"+treatmentID+"/records/medications", 3)

	// 3) Archivar oculta la mascota y todo su historial
	{
		st, body := doReq(t, ts.URL, "POST", "/pets/"+petID+"/archive", staffID, "staff", nil)
		if st != http.StatusOK || !strings.Contains(string(body), "Pet was archived.") {
			t.Fatalf("expected 200 archive, got %d body=%s", st, string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/pets/"+petID, staffID, "staff", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 get archived pet, got %d", st)
		}
	}
	expectRecords(t, ts.URL, "/pets/"+petID+"/records/vaccination-logs", 0)
	expectRecords(t, ts.URL, "/pets/"+petID+"/records/vaccination-logs?include_archived=true", 2)
	expectRecords(t, ts.URL, "/treatments/"+treatmentID+"/records/medications", 0)
	expectRecords(t, ts.URL, "/treatments/"+treatmentID+"/records/medications?include_archived=true", 3)

	// No se escribe historial sobre una mascota archivada
	{
		st, _ := doReq(t, ts.URL, "POST", "/pets/"+petID+"/records/vaccination-logs", staffID, "staff", map[string]any{
			"details": map[string]any{"against": "lepto"},
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 record on archived pet, got %d", st)
		}
	}
	// Archivar dos veces no encuentra nada activo
	{
		st, _ := doReq(t, ts.URL, "POST", "/pets/"+petID+"/archive", staffID, "staff", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 second archive, got %d", st)
		}
	}

	// 4) Restaurar devuelve exactamente lo archivado
	{
		st, body := doReq(t, ts.URL, "POST", "/pets/"+petID+"/restore", staffID, "staff", nil)
		if st != http.StatusOK || !strings.Contains(string(body), "Pet restored successfully") {
			t.Fatalf("expected 200 restore, got %d body=%s", st, string(body))
		}
	}
	expectRecords(t, ts.URL, "/pets/"+petID+"/records/vaccination-logs", 2)
	expectRecords(t, ts.URL, "/treatments/"+treatmentID+"/records/medications", 3)

	// 5) Purga: staff no puede, admin sí, y no queda rastro
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/pets/"+petID, staffID, "staff", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 purge by staff, got %d", st)
		}
	}
	{
		st, body := doReq(t, ts.URL, "DELETE", "/pets/"+petID, adminID, "admin", nil)
		if st != http.StatusOK || !strings.Contains(string(body), "Permanently Deleted") {
			t.Fatalf("expected 200 purge, got %d body=%s", st, string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/pets/"+petID, adminID, "admin", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 second purge, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/pets/"+petID+"/records/vaccination-logs?include_archived=true", staffID, "staff", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 records of purged pet, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/treatments/"+treatmentID+"/records/medications?include_archived=true", staffID, "staff", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 medications of purged treatment, got %d", st)
		}
	}
}

func TestHTTP_LifecycleRequiresCapabilities(t *testing.T) {
	ts := newServer(t, config.Config{DevAuth: true})

	ownerID := createOwner(t, ts.URL, "ben@example.com")
	petID := createPet(t, ts.URL, ownerID, map[string]any{"name": "Luna", "species": "cat", "sex": "female"})

	{
		st, _ := doReq(t, ts.URL, "POST", "/pets/"+petID+"/archive", "", "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 archive without auth, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/pets/"+petID+"/archive", "someone", "owner", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 archive by owner role, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/pets/does-not-exist/archive", staffID, "staff", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 archive unknown pet, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/pets/"+petID+"/records/unknown-kind", staffID, "staff", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 unknown record kind, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/pets/"+petID+"/records/vaccination-logs", staffID, "staff", map[string]any{
			"details": map[string]any{},
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 invalid details, got %d", st)
		}
	}
}

func TestHTTP_SignupLoginLogout(t *testing.T) {
	ts := newServer(t, config.Config{})

	{
		st, body := doJSON(t, ts.URL, "POST", "/auth/signup", "", map[string]any{
			"email":       "carla@example.com",
			"password":    "secret-pass",
			"firstname":   "Carla",
			"lastname":    "Cruz",
			"contact_num": "9171234567",
			"zipcode_id":  "1",
			"barangay":    "San Roque",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 signup, got %d body=%s", st, string(body))
		}
	}
	{
		st, _ := doJSON(t, ts.URL, "POST", "/auth/signup", "", map[string]any{
			"email":       "CARLA@example.com",
			"password":    "secret-pass",
			"firstname":   "Carla",
			"lastname":    "Cruz",
			"contact_num": "9171234567",
			"zipcode_id":  "1",
			"barangay":    "San Roque",
		})
		if st != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 duplicated email, got %d", st)
		}
	}
	{
		st, _ := doJSON(t, ts.URL, "POST", "/auth/login", "", map[string]any{"email": "carla@example.com", "password": "wrong-pass"})
		if st != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 bad credentials, got %d", st)
		}
	}

	var login struct {
		Token    string `json:"token"`
		PetOwner *struct {
			ID string `json:"id"`
		} `json:"petowner"`
	}
	{
		st, body := doJSON(t, ts.URL, "POST", "/auth/login", "", map[string]any{"email": "carla@example.com", "password": "secret-pass"})
		if st != http.StatusOK {
			t.Fatalf("expected 200 login, got %d body=%s", st, string(body))
		}
		if err := json.Unmarshal(body, &login); err != nil {
			t.Fatalf("decode login: %v", err)
		}
		if login.Token == "" || login.PetOwner == nil {
			t.Fatalf("expected token and petowner, got %s", string(body))
		}
	}
	{
		st, body := doJSON(t, ts.URL, "GET", "/owners/me", login.Token, nil)
		if st != http.StatusOK || !strings.Contains(string(body), login.PetOwner.ID) {
			t.Fatalf("expected 200 own profile, got %d body=%s", st, string(body))
		}
	}
	{
		// Un owner no gestiona mascotas ajenas ni propias desde staff
		st, _ := doJSON(t, ts.URL, "GET", "/pets", login.Token, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 list all pets as owner, got %d", st)
		}
	}
	{
		st, _ := doJSON(t, ts.URL, "POST", "/auth/logout", login.Token, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 logout, got %d", st)
		}
	}
	{
		st, _ := doJSON(t, ts.URL, "GET", "/owners/me", login.Token, nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 after logout, got %d", st)
		}
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := newServer(t, config.Config{DevAuth: true})

	for _, path := range []string{"/health", "/ready"} {
		st, _ := doReq(t, ts.URL, "GET", path, "", "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 %s, got %d", path, st)
		}
	}

	// Genera al menos una operación de ciclo de vida
	_, _ = doReq(t, ts.URL, "POST", "/pets/missing/archive", staffID, "staff", nil)

	st, body := doReq(t, ts.URL, "GET", "/metrics", "", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", st)
	}
	if !strings.Contains(string(body), "petclinic_lifecycle_operations_total") {
		t.Fatalf("expected lifecycle metric in /metrics, got %s", string(body))
	}
}

func TestHTTP_PasswordResetCodeOnlyByMail(t *testing.T) {
	mailer := logmail.NewSender(nil)
	ts := newServerWith(t, router.Options{Config: config.Config{}, Mailer: mailer})

	signup(t, ts.URL, "dana@example.com", "secret-pass")

	st, known := doJSON(t, ts.URL, "GET", "/auth/forgot-password/dana@example.com", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 forgot-password, got %d body=%s", st, string(known))
	}
	if strings.Contains(string(known), `"code"`) || strings.Contains(string(known), `"id"`) {
		t.Fatalf("forgot-password must not return the code or the user id, got %s", string(known))
	}
	st, unknown := doJSON(t, ts.URL, "GET", "/auth/forgot-password/nobody@example.com", "", nil)
	if st != http.StatusOK || string(unknown) != string(known) {
		t.Fatalf("expected identical response for unknown email, got %d body=%s", st, string(unknown))
	}

	msg, ok := mailer.Last("dana@example.com")
	if !ok {
		t.Fatalf("expected reset mail to be sent")
	}
	fields := strings.Fields(msg.Text)
	code := fields[len(fields)-1]

	reset := func(code string) int {
		st, _ := doJSON(t, ts.URL, "POST", "/auth/reset-password", "", map[string]any{
			"email": "dana@example.com", "code": code, "password": "brand-new-pass",
		})
		return st
	}
	for i := 0; i < 4; i++ {
		if st := reset("WRONG" + string(rune('A'+i))); st != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 wrong code, got %d", st)
		}
	}
	if st := reset(code); st != http.StatusNoContent {
		t.Fatalf("expected 204 reset with mailed code, got %d", st)
	}
	if st := reset(code); st != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after attempts are exhausted, got %d", st)
	}

	if st, _ := doJSON(t, ts.URL, "POST", "/auth/login", "", map[string]any{"email": "dana@example.com", "password": "brand-new-pass"}); st != http.StatusOK {
		t.Fatalf("expected 200 login with new password, got %d", st)
	}
}

func TestHTTP_VerifyEmailCodeOnlyInDevMode(t *testing.T) {
	for _, dev := range []bool{false, true} {
		ts := newServer(t, config.Config{DevAuth: dev})
		st, body := doJSON(t, ts.URL, "POST", "/auth/verify-email", "", map[string]any{"email": "eli@example.com"})
		if st != http.StatusOK {
			t.Fatalf("dev=%v: expected 200 verify-email, got %d body=%s", dev, st, string(body))
		}
		if got := strings.Contains(string(body), `"code"`); got != dev {
			t.Fatalf("dev=%v: code in response = %v, body=%s", dev, got, string(body))
		}
	}
}

func TestHTTP_DeactivatedAccountLosesAccess(t *testing.T) {
	ts := newServer(t, config.Config{AdminEmail: "root@clinic.test", AdminPassword: "admin-pass-123"})

	adminToken := login(t, ts.URL, "root@clinic.test", "admin-pass-123")

	st, body := doJSON(t, ts.URL, "POST", "/users", adminToken, map[string]any{
		"email": "frank@clinic.test", "password": "staff-pass-123", "role": "staff",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create staff, got %d body=%s", st, string(body))
	}
	staffUserID := decodeID(t, body)

	staffToken := login(t, ts.URL, "frank@clinic.test", "staff-pass-123")
	if st, _ := doJSON(t, ts.URL, "GET", "/pets", staffToken, nil); st != http.StatusOK {
		t.Fatalf("expected 200 list pets as staff, got %d", st)
	}

	if st, _ := doJSON(t, ts.URL, "POST", "/users/"+staffUserID+"/deactivate", adminToken, nil); st != http.StatusOK {
		t.Fatalf("expected 200 deactivate, got %d", st)
	}

	// el token emitido antes de desactivar ya no sirve
	if st, _ := doJSON(t, ts.URL, "GET", "/pets", staffToken, nil); st != http.StatusUnauthorized {
		t.Fatalf("expected 401 with token of deactivated account, got %d", st)
	}
	if st, _ := doJSON(t, ts.URL, "POST", "/auth/login", "", map[string]any{"email": "frank@clinic.test", "password": "staff-pass-123"}); st != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 login of deactivated account, got %d", st)
	}

	if st, _ := doJSON(t, ts.URL, "POST", "/users/"+staffUserID+"/activate", adminToken, nil); st != http.StatusOK {
		t.Fatalf("expected 200 activate, got %d", st)
	}
	if st, _ := doJSON(t, ts.URL, "GET", "/pets", staffToken, nil); st != http.StatusOK {
		t.Fatalf("expected 200 once reactivated, got %d", st)
	}
}

func TestHTTP_CreatePetMultipartTooLarge(t *testing.T) {
	h := newHandler(t, router.Options{Config: config.Config{DevAuth: true, PhotoDir: t.TempDir()}})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	ownerID := createOwner(t, ts.URL, "gina@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Bolt")
	_ = mw.WriteField("species", "dog")
	fw, err := mw.CreateFormFile("photo", "huge.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(bytes.Repeat([]byte{0}, pets.MaxPhotoBytes+2<<20))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/owners/"+ownerID+"/pets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Debug-User-ID", staffID)
	req.Header.Set("X-Debug-Role", "staff")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 oversized multipart, got %d body=%s", rr.Code, rr.Body.String())
	}

	st, body := doReq(t, ts.URL, "GET", "/pets", staffID, "staff", nil)
	var page struct {
		Total int `json:"total"`
	}
	if st != http.StatusOK || json.Unmarshal(body, &page) != nil || page.Total != 0 {
		t.Fatalf("expected no pet created, got %d body=%s", st, string(body))
	}
}

func TestHTTP_EveryRouteIsDocumented(t *testing.T) {
	h := newHandler(t, router.Options{Config: config.Config{DevAuth: true, PhotoDir: t.TempDir()}})
	routes, ok := h.(chi.Routes)
	if !ok {
		t.Fatalf("router is not a chi.Routes")
	}

	raw, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("read swagger doc: %v", err)
	}
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode swagger doc: %v", err)
	}

	skip := map[string]bool{"/health": true, "/ready": true, "/metrics": true}
	err = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if skip[route] || strings.Contains(route, "*") {
			return nil
		}
		path := strings.TrimSuffix(route, "/")
		if _, ok := doc.Paths[path][strings.ToLower(method)]; !ok {
			t.Errorf("%s %s missing from swagger doc", method, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
}

// Helpers

func signup(t *testing.T, baseURL, email, password string) {
	t.Helper()
	st, body := doJSON(t, baseURL, "POST", "/auth/signup", "", map[string]any{
		"email":       email,
		"password":    password,
		"firstname":   "Dana",
		"lastname":    "Lim",
		"contact_num": "9171234567",
		"zipcode_id":  "1",
		"barangay":    "San Roque",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 signup, got %d body=%s", st, string(body))
	}
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()
	st, body := doJSON(t, baseURL, "POST", "/auth/login", "", map[string]any{"email": email, "password": password})
	if st != http.StatusOK {
		t.Fatalf("expected 200 login %s, got %d body=%s", email, st, string(body))
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		t.Fatalf("missing token in login response: %s", string(body))
	}
	return out.Token
}

func createOwner(t *testing.T, baseURL, email string) string {
	t.Helper()
	st, body := doReq(t, baseURL, "POST", "/owners", staffID, "staff", map[string]any{
		"firstname":   "Ana",
		"lastname":    "Reyes",
		"email":       email,
		"contact_num": "9171234567",
		"zipcode_id":  "1",
		"barangay":    "San Roque",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create owner, got %d body=%s", st, string(body))
	}
	return decodeID(t, body)
}

func createPet(t *testing.T, baseURL, ownerID string, payload map[string]any) string {
	t.Helper()
	st, body := doReq(t, baseURL, "POST", "/owners/"+ownerID+"/pets", staffID, "staff", payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create pet, got %d body=%s", st, string(body))
	}
	return decodeID(t, body)
}

func createRecord(t *testing.T, baseURL, path string, payload map[string]any) string {
	t.Helper()
	st, body := doReq(t, baseURL, "POST", path, staffID, "staff", payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create record %s, got %d body=%s", path, st, string(body))
	}
	return decodeID(t, body)
}

func expectRecords(t *testing.T, baseURL, path string, want int) {
	t.Helper()
	st, body := doReq(t, baseURL, "GET", path, staffID, "staff", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 list %s, got %d body=%s", path, st, string(body))
	}
	var out []map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode list %s: %v body=%s", path, err, string(body))
	}
	if len(out) != want {
		t.Fatalf("expected %d records in %s, got %d", want, path, len(out))
	}
}

func decodeID(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, string(body))
	}
	if out.ID == "" {
		t.Fatalf("missing id in response: %s", string(body))
	}
	return out.ID
}

func doReq(t *testing.T, baseURL, method, path, userID, role string, payload any) (int, []byte) {
	t.Helper()
	headers := map[string]string{}
	if userID != "" {
		headers["X-Debug-User-ID"] = userID
		headers["X-Debug-Role"] = role
	}
	return send(t, baseURL, method, path, headers, payload)
}

func doJSON(t *testing.T, baseURL, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return send(t, baseURL, method, path, headers, payload)
}

func send(t *testing.T, baseURL, method, path string, headers map[string]string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}
