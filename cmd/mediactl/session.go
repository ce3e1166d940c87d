package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/ferp/backend/internal/client"
	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/workflow"
	"github.com/urfave/cli"
)

func makeSessionCMD() cli.Command {
	return cli.Command{
		Name:   "session",
		Usage:  "Checks whether the access token is a valid session",
		Action: session,
	}
}

func makeSignOutCMD() cli.Command {
	return cli.Command{
		Name:   "sign-out",
		Usage:  "Ends the session of the access token",
		Action: signOut,
	}
}

func makeDownloadCMD() cli.Command {
	return cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Downloads a stored file (image, video or video_compressed)",
		ArgsUsage: "<media type> <public id>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  OutDirFlag,
				Usage: "file to write, defaults to the public id",
			},
		},
		Action: download,
	}
}

func session(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	info, err := newClient(c).Session(ctx)
	if err != nil {
		return err
	}
	if !info.Valid {
		return cli.NewExitError("session is not valid", 1)
	}
	fmt.Printf("Session valid for user %d\n", info.UserID)
	return nil
}

func signOut(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	ended, err := endSession(ctx, newClient(c))
	if err != nil {
		return err
	}
	if !ended {
		fmt.Println("No active session")
		return nil
	}
	fmt.Println("Signed out")
	return nil
}

var _ workflow.Session = (*client.Client)(nil)

// endSession signs out when the session is still valid. It reports whether
// there was a session to end.
func endSession(ctx context.Context, s workflow.Session) (bool, error) {
	valid, err := s.Valid(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	if !valid {
		return false, nil
	}
	if err := s.SignOut(ctx); err != nil {
		return false, fmt.Errorf("failed to sign out: %w", err)
	}
	return true, nil
}

func download(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: mediactl download <media type> <public id>", 2)
	}
	mediaType := models.MediaType(c.Args().Get(0))
	if !mediaType.Valid() {
		return cli.NewExitError(fmt.Sprintf("invalid media type %q", mediaType), 2)
	}
	publicID := c.Args().Get(1)

	out := c.String(OutDirFlag)
	if out == "" {
		out = publicID
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	f, err := os.Create(out)
	if err != nil {
		return err
	}

	n, err := newClient(c).Download(ctx, mediaType, publicID, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out)
		return describe(err)
	}
	fmt.Printf("Saved %s (%d bytes)\n", out, n)
	return nil
}

// describe turns API status errors into readable messages
func describe(err error) error {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return fmt.Errorf("not found (compressed videos are only available once ready)")
	}
	return err
}
