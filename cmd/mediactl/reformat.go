package main

import (
	"context"
	"fmt"

	"github.com/ferp/backend/internal/formats"
	"github.com/ferp/backend/internal/logger"
	"github.com/ferp/backend/internal/workflow"
	"github.com/urfave/cli"
)

const (
	FormatsFileFlag   = "formats-file"
	FormatFlag        = "format"
	OutDirFlag        = "out"
	RenderTimeoutFlag = "render-timeout"
)

func makeReformatImageCMD() cli.Command {
	return cli.Command{
		Name:      "reformat-image",
		Aliases:   []string{"rf"},
		Usage:     "Uploads an image and saves it rendered into social media formats",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   FormatsFileFlag,
				Usage:  "YAML file with the available formats",
				EnvVar: "FORMATS_FILE",
			},
			cli.StringSliceFlag{
				Name:  FormatFlag,
				Usage: "format to render, repeatable (default: all formats)",
			},
			cli.StringFlag{
				Name:  OutDirFlag,
				Usage: "directory the renderings are saved to",
				Value: ".",
			},
			cli.DurationFlag{
				Name:  RenderTimeoutFlag,
				Usage: "timeout of a single rendering",
				Value: workflow.DefaultRenderTimeout,
			},
		},
		Action: reformatImage,
	}
}

func reformatImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("an image file is required", 2)
	}

	set, err := formats.Load(c.String(FormatsFileFlag))
	if err != nil {
		return err
	}

	names := c.StringSlice(FormatFlag)
	if len(names) == 0 {
		names = set.Names()
	}
	for _, name := range names {
		if _, ok := set.Lookup(name); !ok {
			return cli.NewExitError(fmt.Sprintf("unknown format %q, available: %q", name, set.Names()), 2)
		}
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	file, closeFile, err := openFile(path)
	if err != nil {
		return err
	}
	defer closeFile()

	transform := workflow.NewImageTransform(newClient(c), workflow.TransformOptions{
		Formats:       set,
		RenderTimeout: c.Duration(RenderTimeoutFlag),
		Logger:        logger.Logger,
	})
	defer transform.Close()

	// the first requested format renders straight after the upload
	if err := transform.Select(names[0]); err != nil {
		return err
	}
	if err := transform.Upload(ctx, *file); err != nil {
		return err
	}
	fmt.Printf("Uploaded %s as %s\n", file.Name, transform.PublicID())

	saver := workflow.DirSaver{Dir: c.String(OutDirFlag)}
	for i, name := range names {
		if i > 0 {
			if err := transform.Select(name); err != nil {
				return err
			}
		}
		if err := saveRendering(ctx, transform, saver); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("Saved %s\n", formats.FileName(name))
	}
	return nil
}

// saveRendering waits for the selected format to render and saves it
func saveRendering(ctx context.Context, transform *workflow.ImageTransform, saver workflow.Saver) error {
	if err := transform.AwaitSettled(ctx); err != nil {
		return err
	}
	if transform.State() != workflow.TransformReady {
		if n := transform.Notice(); n != nil {
			transform.DismissNotice()
			return fmt.Errorf("rendering failed: %s", n.Message)
		}
		return fmt.Errorf("rendering failed")
	}
	return transform.Download(ctx, saver)
}
