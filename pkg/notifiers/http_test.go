package notifiers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

func TestHTTPNotifierPostsEvent(t *testing.T) {
	var gotMethod, gotHeader string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Token")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier, err := newHTTPNotifier(context.Background(), NotifierConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPNotifierConfig{
			URL:            server.URL,
			Method:         "POST",
			Headers:        map[string]string{"X-Token": "secret"},
			TimeoutSeconds: 2,
		},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPNotifier: %v", err)
	}

	evt := NewListingEvent("dozers", domain.Machine{UniqueKey: "d6", Title: "CAT D6"})
	if err := notifier.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotHeader != "secret" {
		t.Fatalf("X-Token header = %q", gotHeader)
	}

	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Machine.UniqueKey != "d6" {
		t.Fatalf("body machine = %#v", decoded.Machine)
	}
}

func TestHTTPNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	notifier, err := newHTTPNotifier(context.Background(), NotifierConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPNotifierConfig{URL: server.URL, Method: "POST", TimeoutSeconds: 2},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPNotifier: %v", err)
	}

	if err := notifier.Notify(context.Background(), Event{SiteID: "s1"}); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}
