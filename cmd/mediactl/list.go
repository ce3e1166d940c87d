package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ferp/backend/internal/logger"
	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/workflow"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const CollectionFlag = "collection"

func makeListCMD() cli.Command {
	return cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Lists uploaded videos or images",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  CollectionFlag,
				Usage: "collection to show (videos or images)",
				Value: string(workflow.CollectionVideos),
			},
		},
		Action: list,
	}
}

func list(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	l := workflow.NewMediaList(newClient(c), logger.Logger)
	defer l.Close()

	if err := l.SetActive(workflow.Collection(c.String(CollectionFlag))); err != nil {
		return err
	}

	// partial failures are reported per collection below
	_ = l.Load(ctx)

	now := time.Now()
	switch l.Active() {
	case workflow.CollectionImages:
		if err := l.ImagesErr(); err != nil {
			return fmt.Errorf("failed to load images: %w", err)
		}
		if err := l.VideosErr(); err != nil {
			logger.Logger.Warn("Videos are unavailable", zap.Error(err))
		}
		return writeImages(os.Stdout, l.Images(), now)
	default:
		if err := l.VideosErr(); err != nil {
			return fmt.Errorf("failed to load videos: %w", err)
		}
		if err := l.ImagesErr(); err != nil {
			logger.Logger.Warn("Images are unavailable", zap.Error(err))
		}
		return writeVideos(os.Stdout, l.Videos(), now)
	}
}

// writeVideos prints one row per video with sizes, compression ratio and age
func writeVideos(w io.Writer, videos []models.Video, now time.Time) error {
	if len(videos) == 0 {
		_, err := fmt.Fprintln(w, "No videos available")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tSTATUS\tDURATION\tORIGINAL\tCOMPRESSED\tSAVED\tUPLOADED\tID")
	for _, v := range videos {
		compressed, saved := "-", "-"
		if v.CompressedSize > 0 {
			compressed = humanize.Bytes(uint64(v.CompressedSize))
			saved = humanize.FtoaWithDigits(v.CompressionRatio(), 1) + "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Title,
			v.Status,
			formatDuration(v.Duration),
			humanize.Bytes(uint64(v.OriginalSize)),
			compressed,
			saved,
			humanize.RelTime(v.CreatedAt, now, "ago", "from now"),
			v.PublicID,
		)
	}
	return tw.Flush()
}

// writeImages prints one row per image with its age and URL
func writeImages(w io.Writer, images []models.Image, now time.Time) error {
	if len(images) == 0 {
		_, err := fmt.Fprintln(w, "No images available")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tUPLOADED\tID\tURL")
	for _, img := range images {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			img.Title,
			humanize.RelTime(img.CreatedAt, now, "ago", "from now"),
			img.PublicID,
			img.URL,
		)
	}
	return tw.Flush()
}

// formatDuration renders seconds as m:ss, or h:mm:ss for long videos
func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	total := int(seconds + 0.5)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
