package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{&StatusError{Status: 400, Message: "bad"}, ActionFatal},
		{&StatusError{Status: 404, Message: "not_found"}, ActionFatal},
		{fmt.Errorf("wrapped: %w", &StatusError{Status: 403}), ActionFatal},
		{&StatusError{Status: 429, Message: "slow down"}, ActionFailover},
		{&StatusError{Status: 500, Message: "boom"}, ActionFailover},
		{&StatusError{Status: 503}, ActionFailover},
		{fmt.Errorf("%w: http://a", ErrTimeout), ActionFailover},
		{errors.New("connection reset by peer"), ActionFailover},
		{context.Canceled, ActionFatal},
		{fmt.Errorf("outer: %w", context.DeadlineExceeded), ActionFatal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":"not_found"}`, "not_found"},
		{`{"message":"quota"}`, "quota"},
		{`{"error":"  "}`, "HTTP 502"},
		{`<html>gateway</html>`, "HTTP 502"},
		{``, "HTTP 502"},
	}
	for _, tt := range tests {
		if got := newStatusError(502, []byte(tt.body), "http://x").Error(); got != tt.want {
			t.Errorf("newStatusError(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := DefaultRetryConfig
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := cfg.Backoff(i); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}
