package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/getstubd/stubd/pkg/config"
	"github.com/getstubd/stubd/pkg/endpoint"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
)

func TestBuildResolver_Precedence(t *testing.T) {
	r, err := buildResolver(config.ResolutionConfig{
		PathMappings: map[string]string{"/orders/**": "orderScenario"},
		JSONPath:     "$.type",
	})
	if err != nil {
		t.Fatalf("buildResolver failed: %v", err)
	}

	tests := []struct {
		name   string
		msg    *message.Message
		want   string
		wantOK bool
	}{
		{
			name: "header wins over everything",
			msg: message.NewInbound(`{"type":"fromBody"}`).
				SetHeader(message.HeaderScenario, "fromHeader").
				SetHeader(message.HeaderPath, "/orders/1"),
			want:   "fromHeader",
			wantOK: true,
		},
		{
			name:   "path glob before content",
			msg:    message.NewInbound(`{"type":"fromBody"}`).SetHeader(message.HeaderPath, "/orders/1"),
			want:   "orderScenario",
			wantOK: true,
		},
		{
			name:   "content as last resort",
			msg:    message.NewInbound(`{"type":"fromBody"}`).SetHeader(message.HeaderPath, "/other"),
			want:   "fromBody",
			wantOK: true,
		},
		{
			name:   "nothing matches",
			msg:    message.NewInbound(`plain text`).SetHeader(message.HeaderPath, "/other"),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.msg)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuildResolver_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ResolutionConfig
	}{
		{"bad glob", config.ResolutionConfig{PathMappings: map[string]string{"/bad/[": "s"}}},
		{"bad jsonpath", config.ResolutionConfig{JSONPath: "$..["}},
		{"bad expression", config.ResolutionConfig{Expression: "1 +"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildResolver(tt.cfg); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestTrafficObserver_LogsBothDirections(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	obs := trafficObserver(log)

	ch := endpoint.NewChannelEndpoint("test", 1)
	consumer := endpoint.ObserveConsumer(ch, obs)
	producer := endpoint.ObserveProducer(ch, obs)

	if err := ch.Offer(message.NewInbound("req").WithID("in-1")); err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	if _, err := consumer.Receive(context.Background(), time.Second); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if err := producer.Send(context.Background(), message.NewOutbound("rep").WithID("out-1")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "transport message received") || !strings.Contains(out, "in-1") {
		t.Errorf("inbound traffic not logged: %q", out)
	}
	if !strings.Contains(out, "transport message sent") || !strings.Contains(out, "out-1") {
		t.Errorf("outbound traffic not logged: %q", out)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.AdminPort = cfg.HTTP.Port
	if _, err := New(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}
