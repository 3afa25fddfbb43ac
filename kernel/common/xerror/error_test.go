package xerror

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		rhs  *Error
		want bool
	}{
		{"same", ErrNonce, ErrNonce, true},
		{"more", ErrNonce.More("expect %d", 1), ErrNonce, true},
		{"different", ErrNonce, ErrSignature, false},
		{"nil", ErrNonce, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Equal(tt.rhs); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsWrapped(t *testing.T) {
	err := pkgerrors.Wrap(ErrChainID.More("got %s", "other"), "check request")
	if !errors.Is(err, ErrChainID) {
		t.Errorf("wrapped error should match by code")
	}
	if CastError(errors.New("boom")).Code != ErrUnknown.Code {
		t.Errorf("unknown error should be cast to ErrUnknown")
	}
	if CastError(nil) != nil {
		t.Errorf("nil error should be cast to nil")
	}
}
