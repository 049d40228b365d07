package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/relay"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newRelay(t *testing.T, cfg mockConfig, shape relay.PayloadShape, apiKey string) *relay.Client {
	t.Helper()
	srv := httptest.NewServer(newMockHandler(cfg))
	t.Cleanup(srv.Close)

	client, err := relay.New(relay.Config{
		Endpoint:     srv.URL + "/v1/chat/completions",
		APIKey:       apiKey,
		PayloadShape: shape,
		MaxRetries:   3,
	}, relay.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func turns(user string) []api.Turn {
	return []api.Turn{api.SystemTurn("be brief"), api.UserTurn(user)}
}

func TestEchoesThroughRelay(t *testing.T) {
	for _, shape := range []relay.PayloadShape{relay.ShapeEnveloped, relay.ShapeBare} {
		for _, replyShape := range []string{"choices", "content", "response"} {
			t.Run(string(shape)+"/"+replyShape, func(t *testing.T) {
				client := newRelay(t, mockConfig{ReplyShape: replyShape}, shape, "")

				got, err := client.Relay(context.Background(), turns("hello"), relay.Options{})
				if err != nil {
					t.Fatalf("Relay: %v", err)
				}
				if got != "echo (2 turns): hello" {
					t.Errorf("reply = %q", got)
				}
			})
		}
	}
}

func TestFailFirstIsRetried(t *testing.T) {
	client := newRelay(t, mockConfig{FailFirst: 2}, relay.ShapeEnveloped, "")

	got, err := client.Relay(context.Background(), turns("again"), relay.Options{})
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if !strings.HasSuffix(got, "again") {
		t.Errorf("reply = %q", got)
	}
}

func TestInjectedFaults(t *testing.T) {
	tests := []struct {
		prompt string
		want   relay.Kind
	}{
		{"[status:400] nope", relay.KindBadUpstreamRequest},
		{"[status:503] down", relay.KindUpstreamServerError},
		{"[status:429] busy", relay.KindRateLimited},
		{"[error] refuse", relay.KindUpstreamRejected},
		{"[malformed] html", relay.KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			client := newRelay(t, mockConfig{}, relay.ShapeEnveloped, "")

			_, err := client.Relay(context.Background(), turns(tt.prompt), relay.Options{})
			if got := relay.KindOf(err); got != tt.want {
				t.Errorf("kind = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestSlowDirectiveHonorsCancel(t *testing.T) {
	client := newRelay(t, mockConfig{}, relay.ShapeEnveloped, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Relay(ctx, turns("[slow:10s] wait"), relay.Options{})
	var rerr *relay.Error
	if !errors.As(err, &rerr) || rerr.Kind != relay.KindCancelled {
		t.Errorf("err = %v, want cancelled", err)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := mockConfig{APIKey: "sekret"}

	client := newRelay(t, cfg, relay.ShapeEnveloped, "wrong")
	if _, err := client.Relay(context.Background(), turns("hi"), relay.Options{}); relay.KindOf(err) != relay.KindBadUpstreamRequest {
		t.Errorf("wrong key: err = %v", err)
	}

	client = newRelay(t, cfg, relay.ShapeEnveloped, "sekret")
	if _, err := client.Relay(context.Background(), turns("hi"), relay.Options{}); err != nil {
		t.Errorf("right key: %v", err)
	}
}

func TestRejectsBadBodies(t *testing.T) {
	srv := httptest.NewServer(newMockHandler(mockConfig{}))
	defer srv.Close()

	for _, body := range []string{`not json`, `{"model":"m"}`, `[{"role":1}]`} {
		resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}
