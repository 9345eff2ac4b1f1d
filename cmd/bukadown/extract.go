package cmd

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/kerbaras/bukadown/pkg/app"
	"github.com/kerbaras/bukadown/pkg/integrations"
	"github.com/kerbaras/bukadown/pkg/organizer"
	"github.com/kerbaras/bukadown/pkg/services"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/spf13/cobra"
)

// postOptions are the passes that may follow a conversion.
type postOptions struct {
	jpeg    bool
	quality int
	device  string
	epub    string
}

func newExtractCommand(c *commandContext) *cobra.Command {
	var (
		workers int
		plain   bool
		post    postOptions
	)

	cmd := &cobra.Command{
		Use:   "extract INPUT [OUTPUT]",
		Short: "Extract, decode and organize a download folder or a single container",
		Long: `Extract every .buka container and .view file below INPUT, decode the
wrapped pages and rename the folders after the comic and chapter titles.

INPUT may also be a single .buka file. When OUTPUT is omitted the result is
written to an "output" directory next to INPUT. A directory INPUT is copied
into OUTPUT first, so the download folder itself is left untouched.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output := ""
			if len(args) == 2 {
				output = args[1]
			}
			return c.convert(input, output, workers, plain, post)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Decode workers (default from config, 0 = one per CPU)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print log lines instead of the progress view")
	addPostFlags(cmd, &post)
	return cmd
}

func newOrganizeCommand(c *commandContext) *cobra.Command {
	var (
		workers int
		plain   bool
		post    postOptions
	)

	cmd := &cobra.Command{
		Use:   "organize DIR",
		Short: "Extract and organize a folder in place",
		Long: `Extract and organize DIR without copying it first. Containers are deleted
once every page they hold has been decoded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return errors.WithStack(err)
			}
			if !info.IsDir() {
				return errors.Errorf("%s is not a directory", args[0])
			}
			return c.convert(args[0], args[0], workers, plain, post)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Decode workers (default from config, 0 = one per CPU)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print log lines instead of the progress view")
	addPostFlags(cmd, &post)
	return cmd
}

func addPostFlags(cmd *cobra.Command, post *postOptions) {
	cmd.Flags().BoolVar(&post.jpeg, "jpeg", false, "Convert decoded PNG pages to JPEG afterwards")
	cmd.Flags().IntVar(&post.quality, "quality", integrations.DefaultJPEGQuality, "JPEG quality for --jpeg")
	cmd.Flags().StringVar(&post.device, "device", "", "Fit pages to a reading device for --jpeg (see 'jpeg --list-devices')")
	cmd.Flags().StringVar(&post.epub, "epub", "", "Write an EPUB of every organized comic into this directory")
}

func (c *commandContext) convert(input, output string, workers int, plain bool, post postOptions) error {
	tui := !plain && !c.verbose && interactive()
	if err := c.load(tui); err != nil {
		return err
	}
	defer c.close()
	if workers > 0 {
		c.cfg.Decode.Workers = workers
	}
	if output == "" {
		output = services.DefaultOutput(input)
	}

	ctx, cancel := c.context()
	defer cancel()

	conv, err := c.ctrl.NewConverter(ctx)
	if err != nil {
		return err
	}

	var report *services.Report
	if tui {
		report, err = app.NewApp(c.ctrl, post.epub).RunConversion(ctx, conv, input, output)
	} else {
		report, err = conv.Run(ctx, input, output)
	}
	if report != nil {
		renderSummary(os.Stdout, report)
	}
	if err != nil && !errors.Is(err, services.ErrRunFailed) {
		return err
	}

	if perr := c.postProcess(ctx, report, post); perr != nil {
		return perr
	}
	return err
}

// postProcess runs the optional JPEG and EPUB passes over the organized
// comics of a run.
func (c *commandContext) postProcess(ctx context.Context, report *services.Report, post postOptions) error {
	if report == nil || (!post.jpeg && post.epub == "") {
		return nil
	}
	log := logger.FromContext(ctx)

	var processors []integrations.Processor
	if post.jpeg {
		opts := integrations.JPEGOptions{Quality: post.quality, Workers: c.cfg.Decode.Workers}
		if post.device != "" {
			profile, err := integrations.LookupProfile(post.device)
			if err != nil {
				return err
			}
			opts = opts.WithProfile(profile)
		}
		processors = append(processors, integrations.NewJPEGConverter(opts, c.ctrl.Retrier()))
	}
	if post.epub != "" {
		processors = append(processors, integrations.NewEPubBuilder(post.epub))
	}

	dirs := organizedComics(report)
	if len(dirs) == 0 {
		dirs = []string{report.Output}
	}
	for _, p := range processors {
		for _, dir := range dirs {
			if err := p.Process(ctx, dir); err != nil {
				log.Err(err).Error("post processing failed", logger.Data{"dir": dir})
				return err
			}
		}
	}
	return nil
}

// organizedComics returns the directories of the comics a run organized,
// plus chapters that did not end up inside one of them.
func organizedComics(report *services.Report) []string {
	comics := make(map[string]bool)
	for _, rn := range report.Renames {
		if rn.Err == nil && rn.Class.Kind == organizer.KindComic {
			comics[rn.To] = true
		}
	}
	dirs := make(map[string]bool, len(comics))
	for dir := range comics {
		dirs[dir] = true
	}
	for _, rn := range report.Renames {
		if rn.Err == nil && rn.Class.Kind == organizer.KindChapter && !comics[filepath.Dir(rn.To)] {
			dirs[rn.To] = true
		}
	}

	out := make([]string, 0, len(dirs))
	for dir := range dirs {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}
