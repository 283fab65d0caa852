// SPDX-License-Identifier: MIT
package validate

import (
	"testing"
)

func TestValidatorAccumulation(t *testing.T) {
	v := New()
	if !v.IsValid() {
		t.Fatal("new validator should be valid")
	}
	if v.Err() != nil {
		t.Fatal("new validator should return nil error")
	}

	v.AddError("FieldA", "broken", "x")
	v.AddError("FieldB", "also broken", 42)

	if v.IsValid() {
		t.Fatal("validator with errors should be invalid")
	}
	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(verr.Errors()))
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{"port only", ":8080", true},
		{"host and port", "127.0.0.1:8080", true},
		{"empty", "", false},
		{"missing port", "localhost", false},
		{"bad port", ":notaport", false},
		{"port out of range", ":70000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.ListenAddr("Listen", tt.addr)
			if got := v.IsValid(); got != tt.valid {
				t.Errorf("ListenAddr(%q) valid = %v, want %v (%v)", tt.addr, got, tt.valid, v.Err())
			}
		})
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{"host and port", "bridge.local:5000", true},
		{"ip and port", "10.0.0.7:3333", true},
		{"missing host", ":5000", false},
		{"empty", "", false},
		{"no port", "bridge.local", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.HostPort("Addr", tt.addr)
			if got := v.IsValid(); got != tt.valid {
				t.Errorf("HostPort(%q) valid = %v, want %v (%v)", tt.addr, got, tt.valid, v.Err())
			}
		})
	}
}

func TestResolution(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"720p", "1280x720", true},
		{"1080p", "1920x1080", true},
		{"missing separator", "1280720", false},
		{"negative", "-1x720", false},
		{"words", "widexhigh", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Resolution("Resolution", tt.value)
			if got := v.IsValid(); got != tt.valid {
				t.Errorf("Resolution(%q) valid = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	v := New()
	v.OneOf("Exporter", "grpc", []string{"grpc", "http"})
	if !v.IsValid() {
		t.Errorf("grpc should be allowed: %v", v.Err())
	}

	v2 := New()
	v2.OneOf("Exporter", "udp", []string{"grpc", "http"})
	if v2.IsValid() {
		t.Error("udp should be rejected")
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, lvl := range []string{"trace", "debug", "info", "warn", "error"} {
		if _, err := ParseLogLevel(lvl); err != nil {
			t.Errorf("ParseLogLevel(%q) unexpected error: %v", lvl, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("ParseLogLevel(verbose) should fail")
	}
}
