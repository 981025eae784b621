// Package server exposes the client signing key through the external JWT signer gRPC API,
// so local workloads can get assertions signed without holding the private key.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
	v1 "k8s.io/externaljwt/apis/v1"

	"github.com/zarvd/stonebanking-jwt/internal/token"
)

type Signer interface {
	SignPayload(encodedClaims string) (*token.SignedToken, error)
	PublicKey() (*token.PublicKey, error)
}

type V1Server struct {
	v1.UnimplementedExternalJWTSignerServer

	logger    *slog.Logger
	signer    Signer
	maxExpiry time.Duration
	startedAt time.Time
}

func NewV1Server(logger *slog.Logger, signer Signer, maxExpiry time.Duration) *V1Server {
	return &V1Server{
		logger:    logger,
		signer:    signer,
		maxExpiry: maxExpiry,
		startedAt: time.Now(),
	}
}

func (svr *V1Server) Sign(ctx context.Context, req *v1.SignJWTRequest) (*v1.SignJWTResponse, error) {
	logger := svr.logger.With(slog.String("method", "Sign"))
	logger.Info("signing JWT")
	defer logger.Info("signed JWT")

	signed, err := svr.signer.SignPayload(req.GetClaims())
	if err != nil {
		logger.Error("failed to sign JWT", slog.Any("error", err))
		if errors.Is(err, token.ErrMalformedToken) {
			return nil, status.Errorf(codes.InvalidArgument, "claims must be URL-safe base64 encoded JSON")
		}
		return nil, status.Errorf(codes.Internal, "not able to sign JWT")
	}

	return &v1.SignJWTResponse{
		Header:    signed.Header,
		Signature: signed.Signature,
	}, nil
}

func (svr *V1Server) FetchKeys(ctx context.Context, req *v1.FetchKeysRequest) (*v1.FetchKeysResponse, error) {
	logger := svr.logger.With(slog.String("method", "FetchKeys"))
	logger.Info("fetching keys")
	defer logger.Info("fetched keys")

	publicKey, err := svr.signer.PublicKey()
	if err != nil {
		logger.Error("failed to read public key", slog.Any("error", err))
		return nil, status.Errorf(codes.Internal, "not able to read public key")
	}

	return &v1.FetchKeysResponse{
		Keys: []*v1.Key{
			{
				KeyId:                    publicKey.KeyID,
				Key:                      publicKey.Key,
				ExcludeFromOidcDiscovery: false,
			},
		},
		DataTimestamp:      timestamppb.New(svr.startedAt),
		RefreshHintSeconds: int64(svr.maxExpiry.Seconds()),
	}, nil
}

func (svr *V1Server) Metadata(ctx context.Context, req *v1.MetadataRequest) (*v1.MetadataResponse, error) {
	logger := svr.logger.With(slog.String("method", "Metadata"))
	logger.Info("fetching metadata")
	defer logger.Info("fetched metadata")

	return &v1.MetadataResponse{
		MaxTokenExpirationSeconds: int64(svr.maxExpiry.Seconds()),
	}, nil
}
