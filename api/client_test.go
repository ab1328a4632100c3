package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, opts...)
}

func TestListNotebooksDecodesAndSendsHeaders(t *testing.T) {
	var gotKey, gotRequestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/notebooks/files" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-Key")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"filename":"a.py","path":"a.py","size_bytes":120,"modified_at":1700000000.5}]`)
	}, WithAPIKey("duck_test"))

	files, err := c.ListNotebooks(context.Background())
	if err != nil {
		t.Fatalf("ListNotebooks: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "a.py" || files[0].SizeBytes != 120 {
		t.Fatalf("files = %+v", files)
	}
	if gotKey != "duck_test" {
		t.Fatalf("X-API-Key = %q", gotKey)
	}
	if gotRequestID == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestErrorBodyDetailIsSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Notebook not found: b.py"}`)
	})

	_, err := c.ReadNotebook(context.Background(), "b.py")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Detail != "Notebook not found: b.py" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestValidationErrorsMapToSentinel(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			io.WriteString(w, `{"detail":"Invalid filename: must end with .py"}`)
		})
		_, err := c.CreateNotebook(context.Background(), "bad", "")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("status %d: err = %v, want ErrValidation", status, err)
		}
		if IsNetwork(err) {
			t.Fatalf("status %d classified as network error", status)
		}
	}
}

func TestUnauthorizedFiresHookOncePerResponse(t *testing.T) {
	fired := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Invalid or expired API key"}`)
	}, WithUnauthorizedHook(func() { fired++ }))

	_, err := c.ListSessions(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times, want 1", fired)
	}

	if _, err := c.Account(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("second call: %v", err)
	}
	if fired != 2 {
		t.Fatalf("hook fired %d times after two responses, want 2", fired)
	}
}

func TestCreateSessionRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["notebook_path"] != "a.py" {
			t.Fatalf("notebook_path = %v", body["notebook_path"])
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"session_id":"s1","notebook_path":"/data/acct/a.py","port":2718,"ui_url":"/notebooks/sessions/s1/ui","status":"starting"}`)
	})

	resp, err := c.CreateSession(context.Background(), "a.py")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if resp.SessionID != "s1" || resp.Status != StatusStarting {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.UIURL != SessionUIURL("s1") {
		t.Fatalf("UIURL = %q", resp.UIURL)
	}
}

func TestDeleteHandlesNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/notebooks/sessions/s1" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.TerminateSession(context.Background(), "s1"); err != nil {
		t.Fatalf("TerminateSession: %v", err)
	}
}

func TestUploadSendsMultipartFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("dataset_name"); got != "sales" {
			t.Fatalf("dataset_name = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "sales.csv" {
			t.Fatalf("filename = %q", hdr.Filename)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "a,b\n1,2\n" {
			t.Fatalf("content = %q", data)
		}
		io.WriteString(w, `{"status":"ok","dataset":"sales","file":"sales.csv","size_bytes":8,"row_count":1}`)
	})

	res, err := c.Upload(context.Background(), "sales", "sales.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Dataset != "sales" || res.RowCount != 1 {
		t.Fatalf("res = %+v", res)
	}
}

func TestSessionStoreReturnPathIsOneShot(t *testing.T) {
	store := NewSessionStore()
	store.SetReturnPath("/notebooks/a.py")

	if got := store.TakeReturnPath(); got != "/notebooks/a.py" {
		t.Fatalf("first read = %q", got)
	}
	if got := store.TakeReturnPath(); got != "" {
		t.Fatalf("second read = %q, want empty", got)
	}
}

func TestSessionStoreClearDropsEverything(t *testing.T) {
	store := NewSessionStore()
	store.Set(&AccountSession{AccountID: "acct-1", Name: "dev"})
	store.SetReturnPath("/account")

	store.Clear()

	if store.Get() != nil {
		t.Fatal("session survived Clear")
	}
	if got := store.TakeReturnPath(); got != "" {
		t.Fatalf("return path survived Clear: %q", got)
	}
}
