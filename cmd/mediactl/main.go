// Command mediactl drives the media API from the terminal: it lists the
// collections, uploads videos and renders images into social formats.
package main

import (
	"fmt"
	"os"

	"github.com/ferp/backend/internal/logger"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "mediactl"
	app.Usage = "media studio client"
	app.Version = "1.0.0"
	app.Flags = RegisterFlags([]cli.Flag{})
	app.Before = func(c *cli.Context) error {
		return logger.Init(c.GlobalString(LogLevelFlag))
	}
	app.After = func(c *cli.Context) error {
		logger.Sync()
		return nil
	}
	configure(app)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configure(app *cli.App) {
	app.Commands = []cli.Command{
		makeListCMD(),
		makeUploadVideoCMD(),
		makeReformatImageCMD(),
		makeDownloadCMD(),
		makeSessionCMD(),
		makeSignOutCMD(),
	}
}
