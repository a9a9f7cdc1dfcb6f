package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"feedwatch/internal/aggregate"
	"feedwatch/internal/extract"
	"feedwatch/internal/scraper"
	"feedwatch/internal/site"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Render every registered profile and store the latest posts",
	Long: `Render every registered profile in a headless browser, extract up to three
recent posts each, save the rolling and daily snapshots and regenerate the
static page.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireKey(); err != nil {
		return err
	}

	var page aggregate.PageWriter
	if cfg.OutputHTML != "" {
		gen, err := site.NewGenerator(cfg.OutputHTML, cfg.GoogleSearchDomain, logger)
		if err != nil {
			return err
		}
		page = gen
	}

	agg := aggregate.New(aggregate.Deps{
		Registry:  a.registry,
		Flags:     a.flags,
		Snapshots: a.snapshots,
		Renderer:  scraper.NewRodRenderer(renderOptions(), logger),
		Extractor: extract.New(logger),
		Site:      page,
	}, aggregate.Options{
		PageTimeout: cfg.PageTimeout,
		Interval:    cfg.EntityInterval,
		Location:    a.loc,
	}, logger)

	res, err := agg.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case res.Skipped:
		color.New(color.FgYellow).Fprintln(out, "⚠ crawler is disabled, nothing done")
	case len(res.Snapshots) == 0:
		color.New(color.FgYellow).Fprintln(out, "⚠ no links registered")
	default:
		color.New(color.FgGreen).Fprintf(out, "✓ %d profiles, %d posts, %d new today", len(res.Snapshots), res.Posts, res.RecentPosts)
		if res.Failed > 0 {
			color.New(color.FgRed).Fprintf(out, " (%d failed)", res.Failed)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func renderOptions() scraper.Options {
	opts := scraper.DefaultOptions()
	opts.BrowserPath = cfg.ChromePath
	opts.Headless = cfg.Headless
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	opts.SettleDelay = cfg.SettleDelay
	opts.WaitTimeout = cfg.WaitTimeout
	opts.PostWaitDelay = cfg.PostWaitDelay
	return opts
}
