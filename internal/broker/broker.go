// Package broker issues Stone Banking consent and authentication tokens and keeps an
// access token obtained with them.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/zarvd/stonebanking-jwt/internal/claims"
	"github.com/zarvd/stonebanking-jwt/internal/config"
	"github.com/zarvd/stonebanking-jwt/internal/exchange"
	"github.com/zarvd/stonebanking-jwt/internal/key"
	"github.com/zarvd/stonebanking-jwt/internal/token"
)

// Exchanger trades a client assertion for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, clientID, assertion string) (*exchange.AccessToken, error)
}

type Broker struct {
	logger    *slog.Logger
	settings  config.Settings
	codec     *token.Codec
	exchanger Exchanger
	now       func() time.Time
	cache     *tokenCache
}

type Option func(*options)

type options struct {
	exchanger Exchanger
	now       func() time.Time
	timeout   time.Duration
}

// WithExchanger replaces the HTTP client that talks to the token endpoint.
func WithExchanger(e Exchanger) Option {
	return func(o *options) { o.exchanger = e }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithExchangeTimeout bounds every call to the token endpoint.
func WithExchangeTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New validates settings, loads the key pair and returns a ready broker.
// No key is read when settings are incomplete.
func New(logger *slog.Logger, settings config.Settings, opts ...Option) (*Broker, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	settings = settings.WithDefaults()

	o := &options{now: time.Now, timeout: exchange.DefaultTimeout}
	for _, opt := range opts {
		opt(o)
	}

	material, err := key.LoadMaterial(settings.PublicKey, settings.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load key material: %w", err)
	}

	exchanger := o.exchanger
	if exchanger == nil {
		exchanger = exchange.NewClient(logger, settings.Environment.TokenURL(),
			exchange.WithTimeout(o.timeout),
			exchange.WithClock(o.now),
		)
	}

	logger.Info("broker ready",
		slog.String("client-id", settings.ClientID),
		slog.String("environment", settings.Environment.String()),
		slog.String("public-key-source", key.Classify(settings.PublicKey, key.PublicKeyMarker).String()),
		slog.String("private-key-source", key.Classify(settings.PrivateKey, key.PrivateKeyMarker).String()),
	)

	return &Broker{
		logger:    logger,
		settings:  settings,
		codec:     token.NewCodec(material),
		exchanger: exchanger,
		now:       o.now,
		cache:     &tokenCache{now: o.now},
	}, nil
}

// Settings returns the settings the broker was built with, defaults applied.
func (b *Broker) Settings() config.Settings {
	return b.settings
}

// CreateConsentURL returns the URL the user must visit to grant consent.
func (b *Broker) CreateConsentURL(opts claims.ConsentOptions) (string, error) {
	signed, err := b.codec.Sign(claims.NewConsent(&b.settings, b.now(), opts).MapClaims())
	if err != nil {
		return "", fmt.Errorf("failed to create consent token: %w", err)
	}

	query := url.Values{}
	query.Set("client_id", b.settings.ClientID)
	query.Set("jwt", signed)
	return b.settings.Environment.ConsentURL() + "?" + query.Encode(), nil
}

// CreateAuthenticationToken returns a client assertion to exchange for an access token.
func (b *Broker) CreateAuthenticationToken() (string, error) {
	signed, err := b.codec.Sign(claims.NewAuthentication(&b.settings, b.now()).MapClaims())
	if err != nil {
		return "", fmt.Errorf("failed to create authentication token: %w", err)
	}
	return signed, nil
}

// AccessToken returns the cached access token, or a new one when it has expired.
func (b *Broker) AccessToken(ctx context.Context) (*exchange.AccessToken, error) {
	token, refreshed, err := b.cache.getOrRefresh(ctx, func(ctx context.Context) (*exchange.AccessToken, error) {
		assertion, err := b.CreateAuthenticationToken()
		if err != nil {
			return nil, err
		}
		return b.exchange(ctx, assertion)
	})
	if err != nil {
		return nil, err
	}
	if refreshed {
		b.logger.Info("refreshed access token", slog.Time("expires-at", token.ExpiresAt))
	}
	return token, nil
}

// AccessTokenWith exchanges authenticationToken and caches the result.
func (b *Broker) AccessTokenWith(ctx context.Context, authenticationToken string) (*exchange.AccessToken, error) {
	return b.cache.replace(ctx, func(ctx context.Context) (*exchange.AccessToken, error) {
		return b.exchange(ctx, authenticationToken)
	})
}

// CachedAccessToken returns the last access token obtained, valid or not, or nil.
func (b *Broker) CachedAccessToken() *exchange.AccessToken {
	return b.cache.peek()
}

// DecodeToken verifies token against the client public key and returns its claims.
func (b *Broker) DecodeToken(signed string) (map[string]any, error) {
	return b.codec.Decode(signed)
}

func (b *Broker) exchange(ctx context.Context, assertion string) (*exchange.AccessToken, error) {
	token, err := b.exchanger.Exchange(ctx, b.settings.ClientID, assertion)
	if err != nil {
		b.logger.Error("failed to exchange client assertion", slog.Any("error", err))
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	return token, nil
}
