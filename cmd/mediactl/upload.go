package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferp/backend/internal/client"
	"github.com/ferp/backend/internal/logger"
	"github.com/ferp/backend/internal/workflow"
	"github.com/urfave/cli"
)

const (
	TitleFlag       = "title"
	DescriptionFlag = "description"
	MaxSizeFlag     = "max-size"
)

func makeUploadVideoCMD() cli.Command {
	return cli.Command{
		Name:      "upload-video",
		Aliases:   []string{"up"},
		Usage:     "Uploads a video for compression",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  TitleFlag,
				Usage: "video title (required)",
			},
			cli.StringFlag{
				Name:  DescriptionFlag,
				Usage: "video description",
			},
			cli.Int64Flag{
				Name:   MaxSizeFlag,
				Usage:  "largest accepted file in bytes",
				Value:  workflow.DefaultMaxVideoSize,
				EnvVar: "MAX_VIDEO_SIZE",
			},
		},
		Action: uploadVideo,
	}
}

func uploadVideo(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	form := workflow.UploadForm{
		Title:       c.String(TitleFlag),
		Description: c.String(DescriptionFlag),
	}

	if path := c.Args().First(); path != "" {
		file, closeFile, err := openFile(path)
		if err != nil {
			return err
		}
		defer closeFile()
		form.File = file
	}

	navigator := workflow.NavigatorFunc(func(route string) {
		fmt.Printf("Uploaded %q. Compression runs in the background, see \"mediactl list\".\n", form.Title)
	})
	upload := workflow.NewVideoUpload(newClient(c), navigator, workflow.UploadOptions{
		MaxSize: c.Int64(MaxSizeFlag),
		Logger:  logger.Logger,
	})

	if err := upload.Submit(ctx, form); err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			return cli.NewExitError(verr.Error(), 2)
		}
		return err
	}
	return nil
}

// openFile opens path for upload. The returned function closes it.
func openFile(path string) (*client.File, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}

	return &client.File{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: f,
	}, f.Close, nil
}
