package clierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "simple error message",
			err:     New(Validation, "invalid input", nil),
			wantMsg: "invalid input",
		},
		{
			name:    "error with underlying error",
			err:     New(Network, "backend unreachable", errors.New("connection refused")),
			wantMsg: "backend unreachable",
		},
		{
			name:    "empty message",
			err:     New(Internal, "", nil),
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestError_ErrorsIsAs(t *testing.T) {
	underlyingErr := errors.New("401 from server")
	cliErr := New(Auth, "session expired", underlyingErr)

	if !errors.Is(cliErr, underlyingErr) {
		t.Error("errors.Is should find underlying error")
	}

	var target *Error
	if !errors.As(fmt.Errorf("wrapped: %w", cliErr), &target) {
		t.Fatal("errors.As should find Error type")
	}
	if target.Type != Auth {
		t.Errorf("errors.As Type = %v, want %v", target.Type, Auth)
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Type
	}{
		{New(NotFound, "no such game", nil), NotFound},
		{fmt.Errorf("cmd: %w", New(Validation, "bad id", nil)), Validation},
		{errors.New("plain"), Internal},
		{nil, Internal},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.err); got != tt.want {
			t.Errorf("TypeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
