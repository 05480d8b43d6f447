package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func capture(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	got := &PushRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestNewClient_EmptyURL(t *testing.T) {
	if _, err := NewClient(" ", nil); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestPushRecordJSON_Labels(t *testing.T) {
	srv, got := capture(t, http.StatusNoContent)
	c, err := NewClient(srv.URL+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	raw := []byte(`{"id":"e1","type":"FAILED_LOGIN","severity":"high","timestamp":"2025-05-01T10:00:00Z"}`)
	if err := c.PushRecordJSON(context.Background(), "event", raw); err != nil {
		t.Fatalf("PushRecordJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	want := map[string]string{"job": Job, "kind": "event", "type": "FAILED_LOGIN", "severity": "high"}
	for k, v := range want {
		if s.Stream[k] != v {
			t.Errorf("label %s = %q, want %q", k, s.Stream[k], v)
		}
	}
	if s.Values[0][0] != "1746093600000000000" {
		t.Errorf("timestamp = %s", s.Values[0][0])
	}
	if s.Values[0][1] != string(raw) {
		t.Errorf("line = %s", s.Values[0][1])
	}
}

func TestPushRecordJSON_InvalidJSONStillPushed(t *testing.T) {
	srv, got := capture(t, http.StatusNoContent)
	c, _ := NewClient(srv.URL, nil)
	if err := c.PushRecordJSON(context.Background(), "", []byte("not json")); err != nil {
		t.Fatalf("PushRecordJSON: %v", err)
	}
	if got.Streams[0].Stream["job"] != Job || len(got.Streams[0].Stream) != 1 {
		t.Errorf("labels = %v", got.Streams[0].Stream)
	}
}

func TestPush_Non2xx(t *testing.T) {
	srv, _ := capture(t, http.StatusBadRequest)
	c, _ := NewClient(srv.URL, nil)
	if err := c.PushRecordJSON(context.Background(), "alert", []byte(`{}`)); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestPush_SanitizesLabels(t *testing.T) {
	srv, got := capture(t, http.StatusNoContent)
	c, _ := NewClient(srv.URL, nil)
	raw := []byte(`{"type":"weird type/with spaces"}`)
	if err := c.PushRecordJSON(context.Background(), "event", raw); err != nil {
		t.Fatal(err)
	}
	if got.Streams[0].Stream["type"] != "weird_type_with_spaces" {
		t.Errorf("type label = %q", got.Streams[0].Stream["type"])
	}
}
