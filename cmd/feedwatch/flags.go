package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"feedwatch/internal/domain"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Print the feature flags as key=value lines",
	Long: `Print emailEnabled, crawlerEnabled and wechatEnabled as true/false lines.
When GITHUB_OUTPUT is set the lines are appended to that file so later
workflow steps can gate on them.`,
	Args: cobra.NoArgs,
	RunE: runFlags,
}

var flagsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the feature flags as a table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f := a.flags.Get(cmd.Context())
		rows := [][]string{
			{"email", f.EmailEnabled},
			{"crawler", f.CrawlerEnabled},
			{"wechat", f.WechatEnabled},
		}
		return renderTable(cmd.OutOrStdout(), []string{"FEATURE", "STATE"}, rows)
	},
}

var flagsSetCmd = &cobra.Command{
	Use:       "set <email|crawler|wechat> <on|off>",
	Short:     "Switch a feature on or off",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"email", "crawler", "wechat"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.flags.Load(cmd.Context())
		if err != nil {
			return err
		}
		if f, err = setFlag(f, args[0], args[1]); err != nil {
			return err
		}
		if err := a.flags.Save(cmd.Context(), f); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ %s is %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	flagsCmd.AddCommand(flagsShowCmd, flagsSetCmd)
	rootCmd.AddCommand(flagsCmd)
}

func runFlags(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f := a.flags.Get(cmd.Context())

	if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
		}
		defer file.Close()
		if err := writeFlagLines(file, f); err != nil {
			return fmt.Errorf("failed to write GITHUB_OUTPUT: %w", err)
		}
	} else if err := writeFlagLines(cmd.OutOrStdout(), f); err != nil {
		return err
	}

	logger.WithField("component", "flags").WithFields(logrus.Fields{
		"email":   f.Email(),
		"crawler": f.Crawler(),
		"wechat":  f.Wechat(),
	}).Info("Feature flags checked")
	return nil
}

func writeFlagLines(w io.Writer, f domain.FeatureFlags) error {
	_, err := fmt.Fprintf(w, "emailEnabled=%t\ncrawlerEnabled=%t\nwechatEnabled=%t\n",
		f.Email(), f.Crawler(), f.Wechat())
	return err
}

func setFlag(f domain.FeatureFlags, name, state string) (domain.FeatureFlags, error) {
	if state != domain.FlagOn && state != domain.FlagOff {
		return f, fmt.Errorf("state must be %q or %q, got %q", domain.FlagOn, domain.FlagOff, state)
	}
	switch name {
	case "email":
		f.EmailEnabled = state
	case "crawler":
		f.CrawlerEnabled = state
	case "wechat":
		f.WechatEnabled = state
	default:
		return f, fmt.Errorf("unknown feature %q", name)
	}
	return f, nil
}
