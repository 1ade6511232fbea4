package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyAcceptsValidSignature(t *testing.T) {
	t.Parallel()

	v := NewVerifier("shared-secret")
	body := []byte(`{"urls":["https://example.com/jobs"]}`)
	require.NoError(t, v.Verify(body, v.Sign(body)))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	v := NewVerifier("shared-secret")
	body := []byte(`{"urls":["https://example.com/jobs"]}`)
	sig := v.Sign(body)

	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x01
	require.ErrorIs(t, v.Verify(tampered, sig), ErrInvalidSignature)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	body := []byte(`payload`)
	sig := NewVerifier("other-secret").Sign(body)
	require.ErrorIs(t, NewVerifier("shared-secret").Verify(body, sig), ErrInvalidSignature)
}

func TestVerifyRejectsMissingOrMalformed(t *testing.T) {
	t.Parallel()

	v := NewVerifier("shared-secret")
	require.ErrorIs(t, v.Verify([]byte("x"), ""), ErrMissingSignature)
	require.ErrorIs(t, v.Verify([]byte("x"), "not-hex!"), ErrInvalidSignature)
}
