// Command strainctl inspects strain datasets: validate a source, render one
// frame as SVG or JSON, or browse the tree in the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/i18n"
	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/observability"
	"finitefield.org/seed-web/internal/reconcile"
	"finitefield.org/seed-web/internal/render"
	"finitefield.org/seed-web/internal/straindata"
	"finitefield.org/seed-web/internal/tui"
)

type rootOptions struct {
	data    string
	dataDir string
	timeout time.Duration
	verbose bool
	logger  *zap.Logger
}

func (o *rootOptions) loader() *straindata.Loader {
	return straindata.NewLoader(
		straindata.WithDataDir(o.dataDir),
		straindata.WithFetchTimeout(o.timeout),
		straindata.WithCacheTTL(0),
		straindata.WithLogger(o.logger),
	)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "strainctl",
		Short:         "Inspect and render strain genetics datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = observability.NewCLILogger(opts.verbose)
		},
	}
	root.PersistentFlags().StringVar(&opts.data, "data", navigator.DefaultDataURL, "data source (path, file://, http(s):// or gs://)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", ".", "directory relative paths resolve against")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 8*time.Second, "http fetch timeout (0 disables)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(newValidateCmd(opts), newRenderCmd(opts), newBrowseCmd(opts))
	return root
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the data source and report its shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := opts.loader()
			defer loader.Close()
			ds, err := loader.Load(cmd.Context(), opts.data)
			if err != nil {
				return err
			}
			tree := ds.Tree()
			tree.ExpandAll()
			var nodes, leaves, described, grouping int
			tree.Walk(func(n *hierarchy.Node) {
				nodes++
				if n.Leaf() {
					leaves++
				}
				if n.Grouping {
					grouping++
				}
				if ds.Index.Has(n.Name) {
					described++
				}
			})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:       %s\n", ds.Source)
			fmt.Fprintf(out, "root:         %s\n", tree.Root().Name)
			fmt.Fprintf(out, "nodes:        %d\n", nodes)
			fmt.Fprintf(out, "leaves:       %d\n", leaves)
			fmt.Fprintf(out, "groupings:    %d\n", grouping)
			fmt.Fprintf(out, "described:    %d\n", described)
			fmt.Fprintf(out, "descriptions: %d\n", ds.Index.Len())
			return nil
		},
	}
}

type renderOptions struct {
	width        int
	height       int
	levelSpacing float64
	expandAll    bool
	format       string
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame of the tree as SVG or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ro.format != "svg" && ro.format != "json" {
				return fmt.Errorf("unknown format %q (want svg or json)", ro.format)
			}
			loader := opts.loader()
			defer loader.Close()
			nav := navigator.New(cmd.Context(), loader,
				navigator.WithDataURL(opts.data),
				navigator.WithViewport(layout.Viewport{Width: ro.width, Height: ro.height}),
				navigator.WithLevelSpacing(ro.levelSpacing),
				navigator.WithLogger(opts.logger),
			)
			frame, err := nav.Current(cmd.Context())
			if err == nil && ro.expandAll {
				frame, err = nav.ExpandAll(cmd.Context())
			}
			if err != nil && frame.Error == "" {
				return err
			}
			// Load failures still print their inline error frame.
			if werr := writeFrame(cmd.Context(), cmd.OutOrStdout(), frame, ro.format); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&ro.width, "width", navigator.DefaultWidth, "viewport width in pixels")
	cmd.Flags().IntVar(&ro.height, "height", layout.DefaultHeight, "viewport height in pixels")
	cmd.Flags().Float64Var(&ro.levelSpacing, "level-spacing", layout.LevelSpacing, "horizontal distance between depth levels")
	cmd.Flags().BoolVar(&ro.expandAll, "expand-all", false, "expand every node before rendering")
	cmd.Flags().StringVar(&ro.format, "format", "svg", "output format: svg or json")
	return cmd
}

func writeFrame(ctx context.Context, w io.Writer, frame reconcile.Frame, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(frame)
	}
	if err := render.Tree(render.TreeProps{Frame: frame}).Render(ctx, w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// browseTitle returns title, or the localized page heading when it is empty.
func browseTitle(title, lang string) (string, error) {
	if title != "" {
		return title, nil
	}
	bundle, err := i18n.Default()
	if err != nil {
		return "", err
	}
	return bundle.T(lang, "strains.title"), nil
}

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var (
		debounce time.Duration
		title    string
		lang     string
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Explore the tree interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			heading, err := browseTitle(title, lang)
			if err != nil {
				return err
			}
			loader := opts.loader()
			defer loader.Close()
			nav := navigator.New(cmd.Context(), loader,
				navigator.WithDataURL(opts.data),
				navigator.WithLogger(opts.logger),
			)
			return tui.Run(nav, heading, debounce)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "heading shown above the tree (defaults to the localized page title)")
	cmd.Flags().StringVar(&lang, "lang", "en", "language of the default heading")
	cmd.Flags().DurationVar(&debounce, "resize-debounce", navigator.DefaultDebounce, "delay before a terminal resize re-lays out the tree")
	return cmd
}

// exitCode maps load failures to distinct statuses.
func exitCode(err error) int {
	var fetchErr *straindata.FetchError
	var malformed *straindata.MalformedDataError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &fetchErr), errors.As(err, &malformed):
		return 1
	default:
		return 2
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "strainctl: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}
