package faults_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/PaulBabatuyi/WeddingHub/internal/faults"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want faults.Class
	}{
		{"nil", nil, faults.ClassPermanent},
		{"plain", errors.New("boom"), faults.ClassPermanent},
		{"marked transient", faults.Transient(errors.New("flaky")), faults.ClassTransient},
		{"marked permanent", faults.Permanent(context.DeadlineExceeded), faults.ClassPermanent},
		{"wrapped marker", fmt.Errorf("put: %w", faults.Transient(errors.New("x"))), faults.ClassTransient},
		{"deadline", fmt.Errorf("stage: %w", context.DeadlineExceeded), faults.ClassTransient},
		{"canceled", context.Canceled, faults.ClassPermanent},
		{"permission", fmt.Errorf("open: %w", os.ErrPermission), faults.ClassPermanent},
		{"unexpected eof", io.ErrUnexpectedEOF, faults.ClassTransient},
		{"net timeout", timeoutErr{}, faults.ClassTransient},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), faults.ClassTransient},
		{"conn refused", syscall.ECONNREFUSED, faults.ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, faults.Classify(tt.err))
		})
	}
}

func TestMarkersKeepNil(t *testing.T) {
	assert.NoError(t, faults.Transient(nil))
	assert.NoError(t, faults.Permanent(nil))
	assert.False(t, faults.IsTransient(nil))
}

func TestMarkersUnwrap(t *testing.T) {
	base := errors.New("disk full")
	assert.ErrorIs(t, faults.Permanent(base), base)
	assert.ErrorIs(t, faults.Transient(base), base)
	assert.Equal(t, "transient", faults.ClassTransient.String())
	assert.Equal(t, "permanent", faults.ClassPermanent.String())
}
