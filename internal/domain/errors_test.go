package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsMatch(t *testing.T) {
	cause := errors.New("telegram: bot was blocked by the user (403)")
	tests := []struct {
		name string
		err  error
		kind error
		code string
	}{
		{"validation", ValidationError("amount must be a positive number"), ErrValidation, "validation"},
		{"not found", NotFoundError("admin not found"), ErrNotFound, "not_found"},
		{"delivery", DeliveryError("copy failed", cause), ErrDelivery, "delivery"},
		{"permission", PermissionDenied("admins only"), ErrPermissionDenied, "permission_denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			if !errors.Is(wrapped, tt.kind) {
				t.Fatalf("errors.Is(%v, %v) = false", wrapped, tt.kind)
			}
			var de *Error
			if !errors.As(wrapped, &de) || de.Code() != tt.code {
				t.Fatalf("code = %v, want %s", de, tt.code)
			}
		})
	}
	if !errors.Is(DeliveryError("copy failed", cause), cause) {
		t.Fatalf("delivery error should unwrap to its cause")
	}
}

func TestUserMessage(t *testing.T) {
	msg, ok := UserMessage(fmt.Errorf("wrap: %w", ValidationError("amount must be a positive number")))
	if !ok || msg != "amount must be a positive number" {
		t.Fatalf("UserMessage = %q, %v", msg, ok)
	}
	if _, ok := UserMessage(errors.New("plain")); ok {
		t.Fatalf("plain errors carry no user message")
	}
}

func TestChannelTitle(t *testing.T) {
	if got := (Channel{Label: "News", Icon: "📰"}).Title(); got != "📰 News" {
		t.Fatalf("Title() = %q", got)
	}
	if got := (Channel{Label: "News"}).Title(); got != "News" {
		t.Fatalf("Title() = %q", got)
	}
}
