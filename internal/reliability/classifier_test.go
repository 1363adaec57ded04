package reliability

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestUnavailableOnly(t *testing.T) {
	wrapped503 := fmt.Errorf("gemini: %w", &StatusError{Code: 503})
	cases := []struct {
		err  error
		want bool
	}{
		{wrapped503, true},
		{&StatusError{Code: 500}, false},
		{&StatusError{Code: 429}, false},
		{&StatusError{Code: 400}, false},
		{errors.New("connection reset by peer"), true},
	}
	for _, tc := range cases {
		if got := UnavailableOnly(tc.err); got != tc.want {
			t.Fatalf("UnavailableOnly(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Code: 400, Body: "bad request"}
	if got := err.Error(); got != "upstream returned HTTP 400: bad request" {
		t.Fatalf("Error() = %q", got)
	}
	if HTTPStatus(fmt.Errorf("wrap: %w", err)) != 400 {
		t.Fatalf("HTTPStatus did not unwrap")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
	if got := ExponentialBackoff(2, time.Second, 0); got != 4*time.Second {
		t.Fatalf("uncapped attempt 2 = %v, want 4s", got)
	}
}
