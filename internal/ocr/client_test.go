package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmit(t *testing.T) {
	var received SubmitRequest
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("path = %s, want /process", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer sidecar.Close()

	client := NewClient(sidecar.URL)
	err := client.Submit(context.Background(), SubmitRequest{
		DocumentID: "doc_1",
		Bucket:     "documents",
		ObjectName: "usr_1/doc_1.pdf",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if received.DocumentID != "doc_1" || received.ObjectName != "usr_1/doc_1.pdf" {
		t.Errorf("sidecar received %+v", received)
	}
}

func TestSubmitErrorStatus(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer sidecar.Close()

	client := NewClient(sidecar.URL)
	if err := client.Submit(context.Background(), SubmitRequest{DocumentID: "doc_1"}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestSubmitUnconfigured(t *testing.T) {
	client := NewClient("")
	if client.IsConfigured() {
		t.Error("empty base URL should not be configured")
	}
	if err := client.Submit(context.Background(), SubmitRequest{}); err == nil {
		t.Fatal("expected an error when no sidecar is configured")
	}
}

func TestParseDate(t *testing.T) {
	if got := ParseDate(""); got != nil {
		t.Errorf("ParseDate(\"\") = %v, want nil", got)
	}
	if got := ParseDate("not a date"); got != nil {
		t.Errorf("ParseDate(garbage) = %v, want nil", got)
	}
	if got := ParseDate("2024-06-01"); got == nil || got.Year() != 2024 || got.Month() != 6 {
		t.Errorf("ParseDate(2024-06-01) = %v", got)
	}
	if got := ParseDate("2024-06-01T10:30:00Z"); got == nil || got.Hour() != 10 {
		t.Errorf("ParseDate(RFC3339) = %v", got)
	}
}
