package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"discripper/internal/config"
	"discripper/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int, requests *[]captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*requests = append(*requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRipCompleted(context.Background(), "Example"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "job started",
			send:          func(s notifications.Service) error { return s.NotifyJobStarted(context.Background(), "ALIEN", "dvd") },
			expectTitle:   "discripper - Job Started",
			expectMessage: "📀 Disc loaded: ALIEN (dvd)",
			expectTags:    "discripper,job,started",
		},
		{
			name:          "rip completed",
			send:          func(s notifications.Service) error { return s.NotifyRipCompleted(context.Background(), "Alien (1979)") },
			expectTitle:   "discripper - Rip Complete",
			expectMessage: "💿 Rip complete: Alien (1979)",
			expectTags:    "discripper,rip,completed",
		},
		{
			name: "job completed",
			send: func(s notifications.Service) error {
				return s.NotifyJobCompleted(context.Background(), "Alien (1979)", "/media/movies/Alien (1979)")
			},
			expectTitle:    "discripper - Complete",
			expectMessage:  "✅ Ready: Alien (1979)\nPath: /media/movies/Alien (1979)",
			expectTags:     "discripper,job,completed",
			expectPriority: "high",
		},
		{
			name: "job failed",
			send: func(s notifications.Service) error {
				return s.NotifyJobFailed(context.Background(), "Alien", errors.New("makemkv produced no output"))
			},
			expectTitle:    "discripper - Error",
			expectMessage:  "❌ Job failed: Alien\nmakemkv produced no output",
			expectTags:     "discripper,error,alert",
			expectPriority: "high",
		},
		{
			name: "rename with failures",
			send: func(s notifications.Service) error {
				return s.NotifyRenameBatch(context.Background(), "Lost", 3, 1)
			},
			expectTitle:   "discripper - Rename Complete (with errors)",
			expectMessage: "Renamed 3 discs of Lost, 1 failed",
			expectTags:    "discripper,rename",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests []captured
			srv := newServer(t, http.StatusOK, &requests)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)

			if err := tt.send(svc); err != nil {
				t.Fatalf("send: %v", err)
			}
			if len(requests) != 1 {
				t.Fatalf("expected one request, got %d", len(requests))
			}
			got := requests[0]
			if got.title != tt.expectTitle || got.body != tt.expectMessage || got.tags != tt.expectTags || got.priority != tt.expectPriority {
				t.Fatalf("unexpected request %+v", got)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	var requests []captured
	srv := newServer(t, http.StatusForbidden, &requests)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL

	if err := notifications.NewService(&cfg).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
