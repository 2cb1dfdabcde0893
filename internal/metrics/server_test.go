package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/reportwatch/pkg/config"
)

func TestServerHandler(t *testing.T) {
	build := config.BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2026-01-01"}
	srv := httptest.NewServer(NewServer("127.0.0.1:0", build).Handler())
	defer srv.Close()

	AlertRunsTotal.WithLabelValues("success").Inc()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`reportwatch_build_info{build_time="2026-01-01",commit="abc123",version="1.2.3"} 1`,
		`reportwatch_runner_runs_total{status="success"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	resp, err = http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	var got config.BuildInfo
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	resp.Body.Close()
	if got.Version != "1.2.3" || got.Commit != "abc123" {
		t.Errorf("version = %+v", got)
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", config.GetBuildInfo())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
