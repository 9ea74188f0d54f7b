package app

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realthor/api/internal/compliance"
	"realthor/api/internal/config"
)

func newTestServer(t *testing.T, cfg config.Config) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture(t, cfg)
	server := httptest.NewServer(NewHTTPServer(f.service, cfg.CORSOrigin).Handler())
	t.Cleanup(server.Close)
	return server, f
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload
}

// signInToken seeds a verified user and issues a session for it.
func signInToken(t *testing.T, f *fixture, id, email, role string) string {
	t.Helper()
	user := seedUser(f, id, email, role)
	session, err := f.service.IssueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}
	return session.Token
}

func TestHealthAndMiddleware(t *testing.T) {
	server, _ := newTestServer(t, testConfig())

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("CORS origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	f.store.pingErr = fmt.Errorf("connection refused")

	status, payload := doJSON(t, http.MethodGet, server.URL+"/api/ready", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
	if payload["ok"] != false {
		t.Errorf("ok = %v, want false", payload["ok"])
	}
}

func TestAuthFlow(t *testing.T) {
	server, _ := newTestServer(t, testConfig())

	// Sign up. SMTP is not configured, so the verification token comes
	// back in the response for local development.
	status, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/signup", "", map[string]any{
		"email":       "maria@example.com",
		"password":    "hunter2hunter2",
		"displayName": "Maria Lopez",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201: %v", status, payload)
	}
	verifyToken, _ := payload["devVerificationToken"].(string)
	if verifyToken == "" {
		t.Fatal("devVerificationToken missing from signup response")
	}

	// Signing in before verification is refused.
	status, payload = doJSON(t, http.MethodPost, server.URL+"/api/auth/signin", "", map[string]any{
		"email": "maria@example.com", "password": "hunter2hunter2",
	})
	if status != http.StatusForbidden || payload["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("unverified signin = %d %v", status, payload["code"])
	}

	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/auth/verify-email", "", map[string]any{"token": verifyToken})
	if status != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", status)
	}

	status, payload = doJSON(t, http.MethodPost, server.URL+"/api/auth/signin", "", map[string]any{
		"email": "maria@example.com", "password": "hunter2hunter2",
	})
	if status != http.StatusOK {
		t.Fatalf("signin status = %d, want 200: %v", status, payload)
	}
	access, _ := payload["accessToken"].(string)
	refresh, _ := payload["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatal("signin did not return both tokens")
	}
	if payload["role"] != "agent" {
		t.Errorf("role = %v, want agent", payload["role"])
	}

	// The access token authenticates the session endpoint.
	status, payload = doJSON(t, http.MethodGet, server.URL+"/api/session", access, nil)
	if status != http.StatusOK || payload["authenticated"] != true {
		t.Fatalf("session check = %d %v", status, payload)
	}
	if payload["userName"] != "Maria Lopez" {
		t.Errorf("userName = %v", payload["userName"])
	}

	// Refresh rotates the pair and revokes the old refresh token.
	status, payload = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", status)
	}
	rotated, _ := payload["refreshToken"].(string)
	if rotated == "" || rotated == refresh {
		t.Fatal("refresh token was not rotated")
	}
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	if status != http.StatusUnauthorized {
		t.Fatalf("stale refresh status = %d, want 401", status)
	}

	// Logout revokes the rotated token too.
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/session/logout", "", map[string]any{"refreshToken": rotated})
	if status != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", status)
	}
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{"refreshToken": rotated})
	if status != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d, want 401", status)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	seedUser(f, "usr_1", "maria@example.com", "agent")

	status, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/reset-password/request", "", map[string]any{
		"email": "maria@example.com",
	})
	if status != http.StatusOK {
		t.Fatalf("request status = %d, want 200", status)
	}
	token, _ := payload["devResetToken"].(string)
	if token == "" {
		t.Fatal("devResetToken missing")
	}

	// Unknown addresses get the same response without a token.
	status, payload = doJSON(t, http.MethodPost, server.URL+"/api/auth/reset-password/request", "", map[string]any{
		"email": "nobody@example.com",
	})
	if status != http.StatusOK {
		t.Fatalf("unknown email status = %d, want 200", status)
	}
	if _, leaked := payload["devResetToken"]; leaked {
		t.Error("reset response must not reveal whether the address exists")
	}

	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/auth/reset-password", "", map[string]any{
		"token": token, "newPassword": "correct-horse-9",
	})
	if status != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", status)
	}

	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/auth/signin", "", map[string]any{
		"email": "maria@example.com", "password": "correct-horse-9",
	})
	if status != http.StatusOK {
		t.Fatalf("signin with new password = %d, want 200", status)
	}
}

func TestRequireSession(t *testing.T) {
	server, _ := newTestServer(t, testConfig())

	status, payload := doJSON(t, http.MethodGet, server.URL+"/api/contacts", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", status)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v", payload["code"])
	}

	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/contacts", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", status)
	}
}

func TestAssistantRoleRestrictions(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	token := signInToken(t, f, "usr_asst", "assistant@example.com", "assistant")

	// Assistants can read.
	status, _ := doJSON(t, http.MethodGet, server.URL+"/api/contacts", token, nil)
	if status != http.StatusOK {
		t.Fatalf("assistant read: status = %d, want 200", status)
	}

	// But cannot run imports or see billing.
	status, payload := doJSON(t, http.MethodPost, server.URL+"/api/imports", token, nil)
	if status != http.StatusForbidden || payload["code"] != "FORBIDDEN" {
		t.Fatalf("assistant import: %d %v, want 403 FORBIDDEN", status, payload["code"])
	}
	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/billing/subscription", token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("assistant billing: status = %d, want 403", status)
	}
}

func TestContactCRUDOverHTTP(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	token := signInToken(t, f, "usr_1", "agent@example.com", "agent")

	status, payload := doJSON(t, http.MethodPost, server.URL+"/api/contacts", token, map[string]any{
		"firstName": "Ana", "lastName": "Diaz", "email": "ana@example.com", "role": "buyer",
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %v", status, payload)
	}
	contactID := payload["id"].(string)

	status, payload = doJSON(t, http.MethodGet, server.URL+"/api/contacts/"+contactID, token, nil)
	if status != http.StatusOK || payload["firstName"] != "Ana" {
		t.Fatalf("get = %d %v", status, payload["firstName"])
	}

	// Missing names are rejected.
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/contacts", token, map[string]any{"firstName": "Solo"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create status = %d, want 422", status)
	}

	// A buyer with no documents scores zero across the board.
	status, payload = doJSON(t, http.MethodGet, server.URL+"/api/contacts/"+contactID+"/compliance", token, nil)
	if status != http.StatusOK {
		t.Fatalf("compliance status = %d", status)
	}
	score, _ := payload["compliance"].(map[string]any)
	if score == nil || score["score"] != float64(0) {
		t.Fatalf("compliance = %v, want score 0", payload["compliance"])
	}

	status, _ = doJSON(t, http.MethodDelete, server.URL+"/api/contacts/"+contactID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete status = %d", status)
	}
	status, _ = doJSON(t, http.MethodGet, server.URL+"/api/contacts/"+contactID, token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", status)
	}
}

func multipartUpload(t *testing.T, url, token, field, fileName, contentType string, data []byte, extra map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName)}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for key, value := range extra {
		_ = writer.WriteField(key, value)
	}
	_ = writer.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload
}

func TestImportFlowOverHTTP(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	token := signInToken(t, f, "usr_1", "agent@example.com", "agent")
	seedImportContacts(f, "usr_1")

	status, payload := multipartUpload(t, server.URL+"/api/imports", token,
		"file", "contacts.csv", "text/csv", []byte(importCSV), map[string]string{"mode": "balanced"})
	if status != http.StatusCreated {
		t.Fatalf("upload status = %d: %v", status, payload)
	}
	jobID := payload["id"].(string)

	status, payload = doJSON(t, http.MethodPost, server.URL+"/api/imports/"+jobID+"/analyze", token, nil)
	if status != http.StatusOK || payload["status"] != "pending_review" {
		t.Fatalf("analyze = %d %v", status, payload["status"])
	}

	status, payload = doJSON(t, http.MethodGet, server.URL+"/api/imports/"+jobID+"/rows?status=duplicate", token, nil)
	if status != http.StatusOK {
		t.Fatalf("rows status = %d", status)
	}
	rows, _ := payload["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("duplicate rows = %d, want 1", len(rows))
	}

	for _, target := range []string{"duplicate", "conflict"} {
		status, payload = doJSON(t, http.MethodPost, server.URL+"/api/imports/"+jobID+"/rows/bulk-decision", token,
			map[string]any{"status": target, "decision": "skip"})
		if status != http.StatusOK || payload["updated"] != float64(1) {
			t.Fatalf("bulk %s = %d %v", target, status, payload["updated"])
		}
	}

	status, payload = doJSON(t, http.MethodPost, server.URL+"/api/imports/"+jobID+"/execute", token, nil)
	if status != http.StatusOK || payload["status"] != "completed" {
		t.Fatalf("execute = %d %v", status, payload)
	}
	if payload["createdCount"] != float64(1) || payload["skippedCount"] != float64(2) {
		t.Fatalf("counts = %v/%v, want 1 created 2 skipped", payload["createdCount"], payload["skippedCount"])
	}
}

func TestDocumentUploadOverHTTP(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	token := signInToken(t, f, "usr_1", "agent@example.com", "agent")

	status, payload := multipartUpload(t, server.URL+"/api/documents", token,
		"file", "dni.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{"category": compliance.DocDNI})
	if status != http.StatusCreated {
		t.Fatalf("upload status = %d: %v", status, payload)
	}
	docID := payload["id"].(string)
	if payload["category"] != compliance.DocDNI {
		t.Errorf("category = %v", payload["category"])
	}

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/documents/"+docID+"/download", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "%PDF-1.4" {
		t.Errorf("body = %q", body)
	}
}

func TestOCRWebhookOverHTTP(t *testing.T) {
	cfg := testConfig()
	cfg.OCRWebhookSecret = "sidecar-secret"
	server, f := newTestServer(t, cfg)
	user := seedUser(f, "usr_1", "agent@example.com", "agent")
	docID := uploadTestDocument(t, f, user.ID)

	body := map[string]any{"document_id": docID, "status": "completed", "text": "hello"}
	encoded, _ := json.Marshal(body)

	// Wrong shared secret.
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/webhooks/ocr", bytes.NewReader(encoded))
	req.Header.Set("X-OCR-Secret", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, server.URL+"/api/webhooks/ocr", bytes.NewReader(encoded))
	req.Header.Set("X-OCR-Secret", "sidecar-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := f.store.documents[docID].OCRText; got != "hello" {
		t.Errorf("OCRText = %q", got)
	}
}

func signBillingHeader(secret, body []byte, at time.Time) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.%s", at.Unix(), body)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func postBillingEvent(t *testing.T, serverURL, signature string, body []byte) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/webhooks/billing", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Billing-Signature", signature)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST billing webhook: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload
}

func TestBillingWebhookOverHTTP(t *testing.T) {
	cfg := testConfig()
	cfg.BillingWebhookSecret = "whsec_test"
	server, f := newTestServer(t, cfg)
	seedUser(f, "usr_1", "agent@example.com", "agent")

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{` +
		`"customer":"cus_1","subscription":"sub_1","client_reference_id":"usr_1",` +
		`"plan":"pro","status":"active","current_period_end":1735689600}}`)
	secret := []byte(cfg.BillingWebhookSecret)

	status, payload := postBillingEvent(t, server.URL, signBillingHeader(secret, body, time.Now()), body)
	if status != http.StatusOK || payload["received"] != true {
		t.Fatalf("webhook = %d %v", status, payload)
	}
	sub := f.store.subs["usr_1"]
	if sub.Plan != "pro" || sub.Status != "active" {
		t.Fatalf("subscription = %+v, want pro/active", sub)
	}
	if sub.CurrentPeriodEnd == nil {
		t.Error("CurrentPeriodEnd not recorded")
	}

	// A replayed event is acknowledged but does not reprocess.
	status, _ = postBillingEvent(t, server.URL, signBillingHeader(secret, body, time.Now()), body)
	if status != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", status)
	}
	if len(f.store.billingEvents) != 1 {
		t.Errorf("billing events recorded = %d, want 1", len(f.store.billingEvents))
	}

	// Tampered signatures are rejected.
	status, payload = postBillingEvent(t, server.URL, signBillingHeader([]byte("other"), body, time.Now()), body)
	if status != http.StatusBadRequest || payload["code"] != "INVALID_SIGNATURE" {
		t.Fatalf("bad signature = %d %v", status, payload["code"])
	}

	// Stale timestamps get their own error code.
	status, payload = postBillingEvent(t, server.URL,
		signBillingHeader(secret, body, time.Now().Add(-time.Hour)), body)
	if status != http.StatusBadRequest || payload["code"] != "STALE_SIGNATURE" {
		t.Fatalf("stale = %d %v", status, payload["code"])
	}
}

func TestBillingWebhookDisabled(t *testing.T) {
	server, _ := newTestServer(t, testConfig())
	status, payload := postBillingEvent(t, server.URL, "t=1,v1=abc", []byte(`{}`))
	if status != http.StatusNotImplemented || payload["code"] != "BILLING_DISABLED" {
		t.Fatalf("disabled webhook = %d %v", status, payload["code"])
	}
}

func TestBillingSubscriptionDefaultsToFree(t *testing.T) {
	server, f := newTestServer(t, testConfig())
	token := signInToken(t, f, "usr_1", "agent@example.com", "agent")

	status, payload := doJSON(t, http.MethodGet, server.URL+"/api/billing/subscription", token, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if payload["plan"] != "free" || payload["status"] != "inactive" {
		t.Fatalf("subscription = %v, want free/inactive", payload)
	}
}

func TestSubscriptionLifecycleEvents(t *testing.T) {
	cfg := testConfig()
	cfg.BillingWebhookSecret = "whsec_test"
	server, f := newTestServer(t, cfg)
	seedUser(f, "usr_1", "agent@example.com", "agent")
	f.store.customers["cus_1"] = "usr_1"
	secret := []byte(cfg.BillingWebhookSecret)

	// Deletion is resolved through the customer id and drops to free.
	body := []byte(`{"id":"evt_del","type":"customer.subscription.deleted","data":{"customer":"cus_1"}}`)
	status, _ := postBillingEvent(t, server.URL, signBillingHeader(secret, body, time.Now()), body)
	if status != http.StatusOK {
		t.Fatalf("delete event status = %d", status)
	}
	sub := f.store.subs["usr_1"]
	if sub.Plan != "free" || sub.Status != "canceled" {
		t.Fatalf("after delete: %+v, want free/canceled", sub)
	}

	// Failed invoices mark the account past due.
	body = []byte(`{"id":"evt_fail","type":"invoice.payment_failed","data":{"customer":"cus_1","plan":"pro","status":"past_due"}}`)
	status, _ = postBillingEvent(t, server.URL, signBillingHeader(secret, body, time.Now()), body)
	if status != http.StatusOK {
		t.Fatalf("failed invoice status = %d", status)
	}
	sub = f.store.subs["usr_1"]
	if sub.Status != "past_due" || sub.Plan != "free" {
		t.Fatalf("after failure: %+v, want free/past_due", sub)
	}

	// Events for unknown customers are rejected.
	body = []byte(`{"id":"evt_ghost","type":"invoice.paid","data":{"customer":"cus_ghost"}}`)
	status, payload := postBillingEvent(t, server.URL, signBillingHeader(secret, body, time.Now()), body)
	if status != http.StatusBadRequest || payload["code"] != "UNKNOWN_CUSTOMER" {
		t.Fatalf("unknown customer = %d %v", status, payload["code"])
	}
}
