package amqp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rabbitmq/amqp091-go"

	"github.com/starford/daybook/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		nilResult   bool
		unavailable bool
	}{
		{name: "nil error", err: nil, nilResult: true},
		{name: "closed connection", err: amqp091.ErrClosed, unavailable: true},
		{name: "wrapped closed", err: fmt.Errorf("send: %w", amqp091.ErrClosed), unavailable: true},
		{name: "recoverable", err: &amqp091.Error{Code: amqp091.ChannelError, Recover: true}, unavailable: true},
		{name: "access refused", err: &amqp091.Error{Code: amqp091.AccessRefused}},
		{name: "other", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.nilResult {
				if got != nil {
					t.Fatalf("classify(nil) = %v", got)
				}
				return
			}
			if errors.Is(got, apperr.ErrUnavailable) != tt.unavailable {
				t.Errorf("classify(%v) unavailable = %v, want %v", tt.err, !tt.unavailable, tt.unavailable)
			}
		})
	}
}

func TestChangeMessageJSON(t *testing.T) {
	msg := NewChangeMessage("alice", "jobs", "2025-11-19", 7)
	if msg.RoutingKey() != "jobs.alice" {
		t.Errorf("RoutingKey = %q", msg.RoutingKey())
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ChangeMessageFromJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(msg, got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}

	if _, err := ChangeMessageFromJSON([]byte("{")); err == nil {
		t.Error("expected error for malformed message")
	}
}
