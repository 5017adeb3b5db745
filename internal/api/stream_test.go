package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/followup"
	"github.com/safemind/go-crisis-alerts/internal/registry"
)

func setupStreamServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	reg := registry.New()
	t.Cleanup(reg.Close)
	events := channels.NewBuffer(0)
	followups := followup.NewService(store, reg, events, nopNotifier{})

	h := NewHandler(store, &fakeQueue{}, followups, events, reg, 8)
	router := gin.New()
	h.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStream_DeliversGroupBroadcast(t *testing.T) {
	srv, reg := setupStreamServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcast once the stream handler has registered the connection. The
	// headers are flushed only with the first frame, so the request below
	// does not return before this fires.
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if reg.IdentityOnline("9") {
				reg.BroadcastToGroup(4, []byte(`{"type":"emergency_alert","report_id":12}`))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream?user_id=9&agency_id=4", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	var data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	if !strings.Contains(data, "emergency_alert") {
		t.Fatalf("stream frame = %q, want emergency alert payload", data)
	}

	// Dropping the client prunes the connection from the registry.
	cancel()
	waitFor(t, func() bool { return !reg.IdentityOnline("9") }, "connection not pruned after client disconnect")
}

func TestStream_SendToIdentity(t *testing.T) {
	srv, reg := setupStreamServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if reg.IdentityOnline("5") {
				reg.SendToIdentity("5", []byte(`{"type":"followup_due","followup_id":3}`))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream?user_id=5", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	var data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	if !strings.Contains(data, "followup_due") {
		t.Fatalf("stream frame = %q, want follow-up reminder payload", data)
	}
}

func TestStream_RequiresUserID(t *testing.T) {
	srv, _ := setupStreamServer(t)

	resp, err := http.Get(srv.URL + "/api/stream")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestStream_RejectsBadAgencyID(t *testing.T) {
	srv, _ := setupStreamServer(t)

	resp, err := http.Get(srv.URL + "/api/stream?user_id=5&agency_id=zero")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
