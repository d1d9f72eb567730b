package errors

import (
	"strings"
	"testing"
)

func TestValidateRecordID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "a1b2c3d4", false},
		{"valid uuid", "0b7f1c1e-8f43-4c52-9a8e-3f1b6f1d2a10", false},
		{"valid dotted", "function_layer.v2", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"path traversal", "..", true},
		{"slash", "a/b", true},
		{"leading dot", ".hidden", true},
		{"space", "a b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecordID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecordID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidRecordID) {
				t.Errorf("ValidateRecordID(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "function_layer_abc.json", false},
		{"empty", "", true},
		{"path", "dags/function.json", true},
		{"windows path", "dags\\function.json", true},
		{"hidden", ".function.json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProjectPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"absolute", "/home/me/project", false},
		{"relative", "work/project", false},
		{"dots in name", "/srv/app..v2", false},

		{"too long", strings.Repeat("a", 1025), true},
		{"path traversal", "/home/../etc", true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProjectPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidateProjectPath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"http://127.0.0.1:9005", false},
		{"https://dag.example.com", false},
		{"", true},
		{"ftp://example.com", true},
		{"127.0.0.1:9005", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if err := ValidateURL(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidLayer,
		ErrCodeUnsupportedInput,
		ErrCodeInvalidFormat,
		ErrCodeInvalidPath,
		ErrCodeInvalidConfig,
		ErrCodeInvalidRecordID,
		ErrCodeInvalidMermaidDag,
		ErrCodeSourceUnavailable,
		ErrCodeMalformedPush,
		ErrCodeCacheUnavailable,
		ErrCodeNotFound,
		ErrCodeRecordNotFound,
		ErrCodeNetwork,
		ErrCodeTimeout,
		ErrCodeCircuitOpen,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
