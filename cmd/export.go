package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirefly/docharbor/internal/embed"
	"github.com/mirefly/docharbor/internal/export"
	"github.com/mirefly/docharbor/internal/render"
	"github.com/mirefly/docharbor/internal/source"
	"github.com/mirefly/docharbor/internal/store"
)

var (
	exportFormats []string
	exportJSON    bool
)

var exportCmd = &cobra.Command{
	Use:   "export <source>",
	Short: "Export every document of a configured source",
	Long: `Export walks the remote table of contents of a configured source,
downloads each document and its media, and writes the results into the
local store as structured records plus the requested output formats.
Individual document failures are reported and skipped; the run only
aborts when the source rejects the configured credentials.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}

		st := store.New(c.DataDir)
		var srcCfg source.Config
		if err := st.GetConfig(args[0], &srcCfg); err != nil {
			return err
		}
		if srcCfg.ID == "" {
			return fmt.Errorf("unknown source %q (add it with: docharbor sources add)", args[0])
		}

		formats := exportFormats
		if !cmd.Flags().Changed("formats") {
			formats = c.Formats
		}
		renderFormats := make([]render.Format, 0, len(formats))
		for _, f := range formats {
			if _, err := render.ForFormat(render.Format(f)); err != nil {
				return err
			}
			renderFormats = append(renderFormats, render.Format(f))
		}

		client := source.NewClient(c.HTTPTimeout(), c.RetryMaxAttempts, c.RetryBaseDelay(), c.RetryMaxDelay())
		embedOpts := []embed.Option{embed.WithConcurrency(c.Concurrency)}
		if c.ImageProxy != "" {
			embedOpts = append(embedOpts, embed.WithProxy(c.ImageProxy))
		}
		orch := export.New(st, client, logger,
			export.WithFormats(renderFormats...),
			export.WithRenderTimeout(c.RenderTimeout()),
			export.WithEmbedder(embed.NewEmbedder(st, logger, embedOpts...)),
		)

		sink := export.SinkFunc(func(e export.Event) {
			if exportJSON {
				return
			}
			switch e.Level {
			case export.LevelSuccess:
				fmt.Printf("✓ %s\n", e.Message)
			case export.LevelError:
				fmt.Fprintf(os.Stderr, "✗ %s\n", e.Message)
			default:
				fmt.Println(e.Message)
			}
		})

		summary, err := orch.Export(cmd.Context(), srcCfg, sink)
		if err != nil {
			return remediate(err, args[0])
		}
		if exportJSON {
			return json.NewEncoder(os.Stdout).Encode(summary)
		}
		if summary.Failed > 0 {
			for _, reason := range summary.FailureReasons {
				fmt.Fprintf(os.Stderr, "  - %s\n", reason)
			}
		}
		return nil
	},
}

// remediate attaches a next-step hint to the errors an operator can
// actually fix.
func remediate(err error, sourceID string) error {
	var authErr *source.AuthError
	var forbiddenErr *source.ForbiddenError
	var rateErr *source.RateLimitError
	switch {
	case errors.As(err, &authErr):
		return fmt.Errorf("%w\n  Hint: the token was rejected; update it with: docharbor sources add %s --token <token> ...", err, sourceID)
	case errors.As(err, &forbiddenErr):
		return fmt.Errorf("%w\n  Hint: the token lacks access to this namespace; check the source's permissions", err)
	case errors.As(err, &rateErr):
		return fmt.Errorf("%w\n  Hint: the source is rate limiting; retry later or raise --retry-max", err)
	}
	return err
}

func init() {
	exportCmd.Flags().StringSliceVar(&exportFormats, "formats", []string{"html", "docx"}, "output formats to render (html, docx, pdf)")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "print the final summary as JSON instead of a log stream")
	rootCmd.AddCommand(exportCmd)
}
