package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/observability"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultServer = "http://localhost:8080"

type globalFlags struct {
	server   string
	email    string
	password string
	verbose  bool
}

func main() {
	var g globalFlags
	root := &cobra.Command{
		Use:          "weddinghub-client",
		Short:        "Upload and browse wedding videos on a WeddingHub server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("WEDDINGHUB_SERVER", defaultServer), "Server base URL")
	root.PersistentFlags().StringVar(&g.email, "email", os.Getenv("WEDDINGHUB_EMAIL"), "Account email")
	root.PersistentFlags().StringVar(&g.password, "password", os.Getenv("WEDDINGHUB_PASSWORD"), "Account password")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug output")

	root.AddCommand(newUploadCmd(&g), newListCmd(&g))

	if err := fang.Execute(context.Background(), root, fang.WithNotifySignal(os.Interrupt)); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (g *globalFlags) connect(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if g.email == "" || g.password == "" {
		return nil, errors.New("--email and --password are required")
	}
	c := NewClient(g.server)
	sess, err := c.SignIn(ctx, g.email, g.password)
	if err != nil {
		return nil, err
	}
	log.Debugf("signed in as %s until %s", sess.UserID, sess.ExpiresAt.Format(time.RFC3339))
	return c, nil
}

type uploadFlags struct {
	video       string
	thumbnail   string
	title       string
	description string
	category    string
	couple      string
	eventDate   string
	venue       string
	location    string
	tags        []string
	public      bool
}

func newUploadCmd(g *globalFlags) *cobra.Command {
	var f uploadFlags
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Submit a wedding video through the wizard",
		Example: `  weddinghub-client upload --email me@example.com --password secret \
    --video ceremony.mp4 --thumbnail cover.jpg \
    --title "Our Day" --category ceremony --couple "Ada & Ben" --date 2024-06-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := observability.InitCLILogger(g.verbose)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runUpload(cmd.Context(), g, &f, log)
		},
	}
	cmd.Flags().StringVar(&f.video, "video", "", "Video file (required)")
	cmd.Flags().StringVar(&f.thumbnail, "thumbnail", "", "Thumbnail image")
	cmd.Flags().StringVar(&f.title, "title", "", "Title")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
	cmd.Flags().StringVar(&f.couple, "couple", "", "Couple names")
	cmd.Flags().StringVar(&f.eventDate, "date", "", "Event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.venue, "venue", "", "Venue")
	cmd.Flags().StringVar(&f.location, "location", "", "Location")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().BoolVar(&f.public, "public", true, "List the video in the public feed")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func (f *uploadFlags) fields() map[string]any {
	fields := map[string]any{"is_public": f.public}
	set := func(name, value string) {
		if value != "" {
			fields[name] = value
		}
	}
	set("title", f.title)
	set("description", f.description)
	set("category", f.category)
	set("couple_names", f.couple)
	set("event_date", f.eventDate)
	set("venue", f.venue)
	set("location", f.location)
	return fields
}

func runUpload(ctx context.Context, g *globalFlags, f *uploadFlags, log *zap.SugaredLogger) error {
	c, err := g.connect(ctx, log)
	if err != nil {
		return err
	}

	d, err := c.CreateDraft(ctx)
	if err != nil {
		return err
	}
	log.Debugf("draft %s created", d.ID)

	if err := c.UploadFile(ctx, d.ID, "video", f.video); err != nil {
		return err
	}
	if f.thumbnail != "" {
		if err := c.UploadFile(ctx, d.ID, "thumbnail", f.thumbnail); err != nil {
			return err
		}
	}
	if err := c.UpdateDraft(ctx, d.ID, f.fields()); err != nil {
		return err
	}
	for _, tag := range f.tags {
		if err := c.AddTag(ctx, d.ID, tag); err != nil {
			return err
		}
	}

	// one advance per wizard step; the last one submits
	for range 4 {
		res, err := advanceWithProgress(ctx, c, d.ID, log)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if res.Submitted {
			log.Infof("submitted video %s", res.RecordID)
			return nil
		}
		log.Debugf("draft moved to step %s", res.Draft.Step)
	}
	return errors.New("draft did not reach submission")
}

// advanceWithProgress polls the submission progress while the advance
// request is in flight.
func advanceWithProgress(ctx context.Context, c *Client, id string, log *zap.SugaredLogger) (*advanceResult, error) {
	pollCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		printed := false
		for {
			select {
			case <-pollCtx.Done():
				if printed {
					fmt.Println()
				}
				return
			case <-ticker.C:
				p, err := c.Progress(pollCtx, id)
				if err != nil {
					log.Debugf("progress: %v", err)
					continue
				}
				if p.Busy && p.Stage != "" {
					fmt.Printf("\rSubmitting (%s): %d%%", p.Stage, p.Percent)
					printed = true
				}
			}
		}
	}()

	res, err := c.Advance(ctx, id)
	stop()
	<-done
	return res, err
}

func newListCmd(g *globalFlags) *cobra.Command {
	var (
		mine     bool
		pageSize int
		token    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos in the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := observability.InitCLILogger(g.verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			c := NewClient(g.server)
			if mine || g.email != "" {
				if c, err = g.connect(ctx, log); err != nil {
					return err
				}
			}

			page, err := c.ListVideos(ctx, mine, pageSize, token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range page.Videos {
				fmt.Fprintf(out, "%s  %-30s  %-12s  %s  views=%d\n", v.ID, v.Title, v.Category, v.CoupleNames, v.Views)
			}
			if page.NextPageToken != "" {
				fmt.Fprintf(out, "next page: --page-token %s\n", page.NextPageToken)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "Only my videos, including private ones")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Videos per page")
	cmd.Flags().StringVar(&token, "page-token", "", "Continue from a previous page")
	return cmd
}
