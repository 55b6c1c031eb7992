package router

import (
	"errors"
	"testing"
)

func TestPathValidate(t *testing.T) {
	tests := []struct {
		name    string
		path    Path
		wantErr bool
	}{
		{"single token", Path{"core"}, false},
		{"nested", Path{"core", "io", "reader"}, false},
		{"default sentinel", Default, false},
		{"empty path", Path{}, true},
		{"nil path", nil, true},
		{"empty token", Path{"core", ""}, true},
		{"separator in token", Path{"core.io"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Validate() error = %v, want ErrInvalidPath", err)
			}
		})
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"core", "core", false},
		{"core.io.reader", "core.io.reader", false},
		{"default", "default", false},
		{"", "", true},
		{"core..io", "", true},
		{".core", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && p.Key() != tt.expected {
				t.Errorf("ParsePath(%q).Key() = %q, want %q", tt.input, p.Key(), tt.expected)
			}
		})
	}
}

func TestPathIsDefault(t *testing.T) {
	if !Default.IsDefault() {
		t.Error("Default.IsDefault() = false, want true")
	}
	if (Path{"core"}).IsDefault() {
		t.Error(`Path{"core"}.IsDefault() = true, want false`)
	}
	if (Path{"default", "sub"}).IsDefault() {
		t.Error(`Path{"default", "sub"}.IsDefault() = true, want false`)
	}
}

func TestNewPath(t *testing.T) {
	p, err := NewPath("core", "io")
	if err != nil {
		t.Fatalf("NewPath failed: %v", err)
	}
	if p.String() != "core.io" {
		t.Errorf("String() = %q, want %q", p.String(), "core.io")
	}

	if _, err := NewPath(); err == nil {
		t.Error("NewPath() with no tokens should fail")
	}
}
