package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	t.Parallel()

	secret := "shpss_test"
	body := []byte(`{"id":1,"email":"a@x.com"}`)
	valid := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: valid,
			secret:    secret,
			want:      true,
		},
		{
			name:      "missing signature",
			body:      body,
			signature: "",
			secret:    secret,
			want:      false,
		},
		{
			name:      "missing secret",
			body:      body,
			signature: valid,
			secret:    "",
			want:      false,
		},
		{
			name:      "malformed base64",
			body:      body,
			signature: "%%%not-base64%%%",
			secret:    secret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      body,
			signature: valid,
			secret:    "other",
			want:      false,
		},
		{
			name:      "re-serialized body",
			body:      []byte(`{"email":"a@x.com","id":1}`),
			signature: valid,
			secret:    secret,
			want:      false,
		},
		{
			name:      "hex digest instead of base64",
			body:      body,
			signature: "00ff",
			secret:    secret,
			want:      false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Verify(tt.body, tt.signature, tt.secret))
		})
	}
}

func TestVerify_SingleByteMutations(t *testing.T) {
	t.Parallel()

	secret := "s3cr3t"
	body := []byte(`{"id":42,"email":"buyer@example.com","total_price":"19.99"}`)
	sig := Sign(body, secret)
	require.True(t, Verify(body, sig, secret))

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		require.False(t, Verify(mutated, sig, secret), "body byte %d", i)
	}

	for i := range sig {
		mutated := []byte(sig)
		// Swap to a different base64 alphabet character.
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		require.False(t, Verify(body, string(mutated), secret), "signature byte %d", i)
	}

	for i := range secret {
		mutated := []byte(secret)
		mutated[i] ^= 0x01
		require.False(t, Verify(body, sig, string(mutated)), "secret byte %d", i)
	}
}
