package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ferp/backend/internal/client"
	"github.com/urfave/cli"
)

const (
	APIURLFlag      = "api-url"
	AccessTokenFlag = "access-token"
	LogLevelFlag    = "log-level"
	TimeoutFlag     = "timeout"
)

// RegisterFlags adds the global connection flags
func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   APIURLFlag,
			Usage:  "base URL of the media API",
			Value:  "http://localhost:8080",
			EnvVar: "MEDIA_API_URL",
		},
		cli.StringFlag{
			Name:   AccessTokenFlag,
			Usage:  "session token issued by the identity provider",
			EnvVar: "MEDIA_ACCESS_TOKEN",
		},
		cli.StringFlag{
			Name:   LogLevelFlag,
			Usage:  "log level (debug, info, warn, error)",
			Value:  "warn",
			EnvVar: "LOG_LEVEL",
		},
		cli.DurationFlag{
			Name:   TimeoutFlag,
			Usage:  "overall timeout of a command, 0 for none",
			EnvVar: "MEDIA_TIMEOUT",
		},
	)
}

// newClient builds an API client from the global flags
func newClient(c *cli.Context) *client.Client {
	return client.New(
		c.GlobalString(APIURLFlag),
		c.GlobalString(AccessTokenFlag),
		&http.Client{Transport: http.DefaultTransport},
	)
}

// commandContext is cancelled on interrupt or when the global timeout expires
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	timeout := c.GlobalDuration(TimeoutFlag)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
