package platform

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindAuto, false},
		{"auto", KindAuto, false},
		{" Mutter ", KindMutter, false},
		{"x11", KindX11, false},
		{"wayland", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseKind(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnavailableWrapping(t *testing.T) {
	if Unavailable("fetch", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}

	cause := errors.New("connection refused")
	err := Unavailable("fetch", cause)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable in %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in %v", err)
	}

	again := Unavailable("apply", err)
	if again != err {
		t.Fatalf("already wrapped errors must not be wrapped twice")
	}
}
