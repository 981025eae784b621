package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"google.golang.org/grpc"
	v1 "k8s.io/externaljwt/apis/v1"

	"github.com/zarvd/stonebanking-jwt/internal/broker"
	"github.com/zarvd/stonebanking-jwt/internal/claims"
	"github.com/zarvd/stonebanking-jwt/internal/config"
	"github.com/zarvd/stonebanking-jwt/internal/exchange"
	"github.com/zarvd/stonebanking-jwt/internal/key"
	"github.com/zarvd/stonebanking-jwt/internal/server"
	"github.com/zarvd/stonebanking-jwt/internal/token"
)

type Globals struct {
	Config      string        `type:"path" env:"STONEBANKING_CONFIG" help:"YAML settings file"`
	ClientID    string        `name:"client-id" help:"Application client id"`
	Environment string        `help:"sandbox or production"`
	PublicKey   string        `help:"Public key PEM text or path"`
	PrivateKey  string        `help:"Private key PEM text or path"`
	AuthTTL     int           `name:"authentication-expires-in" help:"Authentication token lifetime in seconds"`
	ConsentTTL  int           `name:"consent-expires-in" help:"Consent token lifetime in seconds"`
	RedirectURL string        `name:"consent-redirect-url" help:"Default consent redirect URL"`
	Timeout     time.Duration `default:"30s" help:"Token endpoint timeout"`
	LogLevel    slog.Level    `default:"info" help:"Log level"`
}

// settings layers flags over the settings file and STONEBANKING_* variables.
func (g *Globals) settings() (config.Settings, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return config.Settings{}, err
	}
	if g.ClientID != "" {
		cfg.ClientID = g.ClientID
	}
	if g.Environment != "" {
		env, err := config.ParseEnvironment(g.Environment)
		if err != nil {
			return config.Settings{}, err
		}
		cfg.Environment = env
	}
	if g.PublicKey != "" {
		cfg.PublicKey = g.PublicKey
	}
	if g.PrivateKey != "" {
		cfg.PrivateKey = g.PrivateKey
	}
	if g.AuthTTL > 0 {
		cfg.AuthenticationExpiresInSeconds = g.AuthTTL
	}
	if g.ConsentTTL > 0 {
		cfg.ConsentExpiresInSeconds = g.ConsentTTL
	}
	if g.RedirectURL != "" {
		cfg.ConsentDefaultRedirectURL = g.RedirectURL
	}
	return *cfg, nil
}

func (g *Globals) broker(logger *slog.Logger) (*broker.Broker, error) {
	settings, err := g.settings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return broker.New(logger, settings, broker.WithExchangeTimeout(g.Timeout))
}

type ConsentURLCmd struct {
	RedirectURL string            `name:"redirect-url" help:"Overrides the default consent redirect URL"`
	Metadata    map[string]string `help:"Session metadata as key=value pairs"`
}

func (cmd *ConsentURLCmd) Run(globals *Globals, logger *slog.Logger) error {
	b, err := globals.broker(logger)
	if err != nil {
		return err
	}
	consentURL, err := b.CreateConsentURL(claims.ConsentOptions{
		RedirectURL: cmd.RedirectURL,
		Metadata:    cmd.Metadata,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, consentURL)
	return nil
}

type AuthTokenCmd struct{}

func (cmd *AuthTokenCmd) Run(globals *Globals, logger *slog.Logger) error {
	b, err := globals.broker(logger)
	if err != nil {
		return err
	}
	signed, err := b.CreateAuthenticationToken()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, signed)
	return nil
}

type AccessTokenCmd struct {
	Assertion string `help:"Authentication token to exchange instead of a freshly created one"`
}

func (cmd *AccessTokenCmd) Run(ctx context.Context, globals *Globals, logger *slog.Logger) error {
	b, err := globals.broker(logger)
	if err != nil {
		return err
	}

	get := b.AccessToken
	if cmd.Assertion != "" {
		get = func(ctx context.Context) (*exchange.AccessToken, error) {
			return b.AccessTokenWith(ctx, cmd.Assertion)
		}
	}
	accessToken, err := get(ctx)
	if err != nil {
		return err
	}
	return printJSON(accessToken)
}

type DecodeCmd struct {
	Token string `arg:"" help:"Token to verify and decode"`
}

func (cmd *DecodeCmd) Run(globals *Globals, logger *slog.Logger) error {
	b, err := globals.broker(logger)
	if err != nil {
		return err
	}
	decoded, err := b.DecodeToken(cmd.Token)
	if err != nil {
		return err
	}
	return printJSON(decoded)
}

type ServeCmd struct {
	UnixDomainSocket string `arg:"" required:"" help:"Unix domain socket to listen on"`
}

func (cmd *ServeCmd) Run(ctx context.Context, globals *Globals, logger *slog.Logger) error {
	settings, err := globals.settings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	settings = settings.WithDefaults()

	material, err := key.LoadMaterial(settings.PublicKey, settings.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load key material: %w", err)
	}
	maxExpiry := time.Duration(settings.AuthenticationExpiresInSeconds) * time.Second

	grpcServer := grpc.NewServer()
	v1.RegisterExternalJWTSignerServer(grpcServer, server.NewV1Server(logger, token.NewCodec(material), maxExpiry))

	listener, err := net.Listen("unix", cmd.UnixDomainSocket)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer listener.Close()

	go func() {
		logger.Info("serving on", slog.String("address", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("failed to serve", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	grpcServer.GracefulStop()
	logger.Info("shutting down")
	return nil
}

type CLI struct {
	Globals

	ConsentURL  ConsentURLCmd  `cmd:"" name:"consent-url" help:"Print a consent redirect URL"`
	AuthToken   AuthTokenCmd   `cmd:"" name:"auth-token" help:"Print a signed authentication token"`
	AccessToken AccessTokenCmd `cmd:"" name:"access-token" help:"Exchange an authentication token for an access token"`
	Decode      DecodeCmd      `cmd:"" help:"Verify a token with the public key and print its claims"`
	Serve       ServeCmd       `cmd:"" help:"Serve the external JWT signer gRPC API with the client key"`
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli,
		kong.Name("stonebanking"),
		kong.Description("Stone Banking consent and authentication token broker."),
	)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cli.LogLevel}))

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.Bind(logger)
	cliCtx.Bind(&cli.Globals)

	if err := cliCtx.Run(); err != nil {
		logger.Error("failed to run command", slog.Any("error", err))
		os.Exit(1)
	}
}
