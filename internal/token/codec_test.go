package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testKey)
	require.NoError(t, err)
	return codec
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	raw, issued, err := codec.Issue(42, KindAccess, time.Hour)
	require.NoError(t, err)
	require.Empty(t, issued.ID)

	claims, err := codec.Verify(raw, KindAccess)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.Subject)
	require.Equal(t, KindAccess, claims.Kind)
	require.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestCodec_RefreshCarriesUniqueID(t *testing.T) {
	codec := newTestCodec(t)

	rawA, claimsA, err := codec.Issue(1, KindRefresh, time.Hour)
	require.NoError(t, err)
	_, claimsB, err := codec.Issue(1, KindRefresh, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, claimsA.ID)
	require.NotEqual(t, claimsA.ID, claimsB.ID)

	verified, err := codec.Verify(rawA, KindRefresh)
	require.NoError(t, err)
	require.Equal(t, claimsA.ID, verified.ID)
}

func TestCodec_Expired(t *testing.T) {
	codec := newTestCodec(t)

	raw, _, err := codec.Issue(7, KindAccess, -time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(raw, KindAccess)
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestCodec_BadSignature(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	raw, _, err := other.Issue(7, KindAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(raw, KindAccess)
	require.ErrorIs(t, err, domain.ErrBadSignature)
}

func TestCodec_Malformed(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Verify("not-a-token", KindAccess)
	require.ErrorIs(t, err, domain.ErrMalformed)

	raw, _, err := codec.Issue(7, KindAccess, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(raw, ".")
	_, err = codec.Verify(parts[0]+"."+parts[1], KindAccess)
	require.ErrorIs(t, err, domain.ErrMalformed)
}

func TestCodec_KindConfusionRejected(t *testing.T) {
	codec := newTestCodec(t)

	raw, _, err := codec.Issue(7, KindAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(raw, KindRefresh)
	require.ErrorIs(t, err, domain.ErrMalformed)
}
