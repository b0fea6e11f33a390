package cmd

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/pinpost/internal/app"
	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleFlag       string
	descriptionFlag string
	hashtagsFlag    []string
	imagePath       string
	mediaURLFlag    string
	imageAlt        string
	linkFlag        string
	boardFlag       string
	platformsFlag   []string
	dryRun          bool
)

func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [description]",
		Short: "Publish a post to the selected platforms",
		Long: "publish composes a post and sends it to every selected platform at once. " +
			"The image is uploaded once and shared by all platforms. The description can be " +
			"given as arguments, with --description, or on stdin.",
		Args: cobra.ArbitraryArgs,
		RunE: runPublish,
		Example: `  pinpost publish --title "Hello" --board 123 --media-url https://x/y.png
  pinpost publish -t "Ship it" -b 123 --image ./shot.png --hashtag intj --hashtag entp
  echo "Release shipped" | pinpost publish -t "v1.0" -b 123 --image ./shot.png -p all`,
	}

	cmd.Flags().StringVarP(&titleFlag, "title", "t", "", "Post title (max 100 characters)")
	cmd.Flags().StringVarP(&descriptionFlag, "description", "m", "", "Description text")
	cmd.Flags().StringSliceVar(&hashtagsFlag, "hashtag", nil, "Hashtag to append to the description (repeatable)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a local image to upload")
	cmd.Flags().StringVar(&mediaURLFlag, "media-url", "", "Public URL of an already hosted image")
	cmd.Flags().StringVar(&imageAlt, "alt-text", "", "Alternative text for the image (defaults to the title)")
	cmd.Flags().StringVar(&linkFlag, "link", "", "Outbound link")
	cmd.Flags().StringVarP(&boardFlag, "board", "b", "", "Pinterest board id")
	cmd.Flags().StringSliceVarP(&platformsFlag, "platform", "p", []string{pinpost.PlatformPinterest}, "Platforms to publish to (pinterest, mastodon, bluesky, x, or all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without publishing")
	cmd.Flags().SortFlags = false

	return cmd
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	description, err := resolveDescription(cmd, args)
	if err != nil {
		return err
	}

	sel := pinpost.Selections{
		Title:     titleFlag,
		Text:      description,
		Hashtags:  hashtagsFlag,
		AltText:   imageAlt,
		AutoAlt:   true,
		Link:      linkFlag,
		BoardID:   boardFlag,
		MediaURL:  mediaURLFlag,
		Platforms: platformsFlag,
	}
	if imagePath != "" {
		file, err := readImage(imagePath)
		if err != nil {
			return err
		}
		sel.File = file
	}

	req := pinpost.Compose(sel)
	out := cmd.OutOrStdout()

	if dryRun {
		printDryRun(out, req)
		return nil
	}

	var a *app.App
	if apiURL != "" {
		a = app.NewRemote(cfg, apiURL)
	} else {
		a, err = app.New(cfg)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "publishing to %s...\n", strings.Join(req.Platforms, ", "))
	report, err := a.Orchestrator.Publish(ctx, req)
	if err != nil {
		return err
	}

	if logutil.Verbose() {
		fmt.Fprintf(out, "attempt: %s\n", report.AttemptID)
	}
	if report.MediaURL != "" {
		fmt.Fprintf(out, "media: %s\n", report.MediaURL)
	}
	var errs []error
	for _, res := range report.Results {
		fmt.Fprintln(out, res.String())
		if !res.OK() {
			errs = append(errs, fmt.Errorf("%s: %w", res.Platform, res.Err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func resolveDescription(cmd *cobra.Command, args []string) (string, error) {
	var description string

	if descriptionFlag != "" {
		description = descriptionFlag
	}

	if len(args) > 0 {
		if description != "" {
			return "", errors.New("provide the description either as an argument or with --description, not both")
		}
		description = strings.Join(args, " ")
	}

	if description != "" {
		return strings.TrimSpace(description), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		description = strings.TrimSpace(string(data))
	}

	return description, nil
}

func readImage(path string) (*pinpost.LocalFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pinpost.ValidationError{Reason: fmt.Sprintf("image %q not found", path)}
		}
		return nil, fmt.Errorf("read image: %w", err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &pinpost.LocalFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func printDryRun(out io.Writer, req pinpost.PublishRequest) {
	for _, platform := range req.Platforms {
		fmt.Fprintf(out, "[dry-run] would publish to %s: %q\n", platform, req.Title)
	}
	if req.Description != "" {
		fmt.Fprintf(out, "[dry-run] description: %q\n", req.Description)
	}
	switch {
	case req.Media.File != nil:
		fmt.Fprintf(out, "[dry-run] image: %s (%s, %d bytes, alt: %q)\n", req.Media.File.Name, req.Media.File.ContentType, len(req.Media.File.Data), req.AltText)
	case req.Media.URL != "":
		fmt.Fprintf(out, "[dry-run] media url: %s (alt: %q)\n", req.Media.URL, req.AltText)
	}
}
