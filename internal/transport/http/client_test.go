package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/rs/zerolog"
)

func TestClientSendsJSONAndReadsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("headers = %v", r.Header)
		}
		if r.Header.Get("TrackingID") == "" {
			t.Error("missing tracking id")
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in["hello"] != "locus" {
			t.Errorf("body = %v, %v", in, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Token: "tok", Logger: zerolog.Nop()})
	resp, err := c.Do(context.Background(), core.Request{Method: http.MethodPost, URL: srv.URL, Body: map[string]string{"hello": "locus"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != `{"ok":true}` {
		t.Fatalf("resp = %d %s", resp.StatusCode, resp.Body)
	}
}

func TestClientReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"code":403004}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Logger: zerolog.Nop()})
	_, err := c.Do(context.Background(), core.Request{Method: http.MethodGet, URL: srv.URL})
	var se *core.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v", err)
	}
	if se.StatusCode != 403 || string(se.Body) != `{"code":403004}` {
		t.Fatalf("status error = %d %s", se.StatusCode, se.Body)
	}
}

func TestLogUploader(t *testing.T) {
	var got logReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	u := NewLogUploader(NewClient(Options{Logger: zerolog.Nop()}), srv.URL)
	if err := u.UploadLogs(context.Background(), map[string]string{"correlation_id": "c1"}); err != nil {
		t.Fatal(err)
	}
	if got.Meta["correlation_id"] != "c1" {
		t.Fatalf("meta = %v", got.Meta)
	}
	if err := NewLogUploader(nil, "").UploadLogs(context.Background(), nil); err == nil {
		t.Fatal("expected an error without url")
	}
}
