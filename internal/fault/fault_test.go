package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfUnwrapsChains(t *testing.T) {
	t.Parallel()

	base := New(KindRateLimited, "send", errors.New("too many requests"))
	wrapped := fmt.Errorf("deliver: %w", base)

	require.Equal(t, KindRateLimited, KindOf(wrapped))
	require.True(t, Is(wrapped, KindRateLimited))
	require.True(t, IsRetryable(wrapped))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.False(t, Is(nil, KindUnknown))
}

func TestNewNilIsNil(t *testing.T) {
	t.Parallel()

	require.NoError(t, New(KindTransient, "op", nil))
	require.NoError(t, FromNetwork("op", nil))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := New(KindValidation, "telegram.send", errors.New("Bad Request: message is too long"))
	assert.Equal(t, "telegram.send: Bad Request: message is too long", err.Error())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "unknown", Kind(200).String())
}

func TestFromNetworkClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: KindTransient},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTransient},
		{name: "aborted stream", err: io.ErrUnexpectedEOF, want: KindTransient},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.invalid"}, want: KindTransient},
		{name: "canceled", err: context.Canceled, want: KindUnknown},
		{name: "other", err: errors.New("parse failure"), want: KindUnknown},
		{name: "already tagged", err: New(KindValidation, "x", errors.New("bad")), want: KindValidation},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, KindOf(FromNetwork("fetch", tt.err)))
		})
	}
}

func TestFromStatusClassification(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindRateLimited, KindOf(FromStatus("op", http.StatusTooManyRequests, nil)))
	require.Equal(t, KindValidation, KindOf(FromStatus("op", http.StatusBadRequest, nil)))
	require.Equal(t, KindTransient, KindOf(FromStatus("op", http.StatusBadGateway, nil)))
	require.Equal(t, KindUnknown, KindOf(FromStatus("op", http.StatusNotFound, nil)))
	require.Contains(t, FromStatus("op", http.StatusNotFound, nil).Error(), "Not Found")
}
