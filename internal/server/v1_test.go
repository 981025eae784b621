package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	v1 "k8s.io/externaljwt/apis/v1"

	"github.com/zarvd/stonebanking-jwt/internal/key"
	"github.com/zarvd/stonebanking-jwt/internal/testutil"
	"github.com/zarvd/stonebanking-jwt/internal/token"
)

func newTestServer(t *testing.T) (*V1Server, *token.Codec) {
	t.Helper()
	kp := testutil.SharedKeyPair(t)
	codec := token.NewCodec(key.Material{PublicPEM: kp.PublicPEM, PrivatePEM: kp.PrivatePEM})
	return NewV1Server(slog.Default(), codec, 15*time.Minute), codec
}

func TestV1Server_Sign(t *testing.T) {
	t.Parallel()
	svr, codec := newTestServer(t)

	claims := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"123123123","aud":"stone_bank"}`))
	resp, err := svr.Sign(context.Background(), &v1.SignJWTRequest{Claims: claims})
	require.NoError(t, err)

	decoded, err := codec.Decode(resp.Header + "." + claims + "." + resp.Signature)
	require.NoError(t, err)
	require.Equal(t, "123123123", decoded["sub"])
}

func TestV1Server_Sign_InvalidClaims(t *testing.T) {
	t.Parallel()
	svr, _ := newTestServer(t)

	_, err := svr.Sign(context.Background(), &v1.SignJWTRequest{Claims: "%%%"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestV1Server_FetchKeys(t *testing.T) {
	t.Parallel()
	svr, codec := newTestServer(t)

	resp, err := svr.FetchKeys(context.Background(), &v1.FetchKeysRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Keys, 1)

	publicKey, err := codec.PublicKey()
	require.NoError(t, err)
	require.Equal(t, publicKey.KeyID, resp.Keys[0].KeyId)
	require.Equal(t, publicKey.Key, resp.Keys[0].Key)
	require.False(t, resp.Keys[0].ExcludeFromOidcDiscovery)
	require.Equal(t, int64(900), resp.RefreshHintSeconds)
	require.NotNil(t, resp.DataTimestamp)
}

func TestV1Server_Metadata(t *testing.T) {
	t.Parallel()
	svr, _ := newTestServer(t)

	resp, err := svr.Metadata(context.Background(), &v1.MetadataRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(900), resp.MaxTokenExpirationSeconds)
}
