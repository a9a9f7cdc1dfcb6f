package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"feedwatch/internal/domain"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Manage the registry of monitored profiles",
}

var linksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.registry.Load(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No links registered")
			return nil
		}

		unnamed := color.New(color.FgYellow).SprintFunc()
		rows := make([][]string, 0, len(entries))
		for i, e := range entries {
			name := e.Name
			if name == "" {
				name = unnamed("(pending)")
			}
			rows = append(rows, []string{fmt.Sprint(i + 1), name, e.URL})
		}
		return renderTable(cmd.OutOrStdout(), []string{"#", "NAME", "URL"}, rows)
	},
}

var linkName string

var linksAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a profile page",
	Long: `Register a profile page. The name is optional; a blank name is filled in
from the page on the next update run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(a *app) error {
			return a.registry.Add(cmd.Context(), domain.LinkEntry{Name: linkName, URL: args[0]})
		}, "✓ added %s\n", args[0])
	},
}

var linksRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove a registered profile page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(a *app) error {
			return a.registry.Remove(cmd.Context(), args[0])
		}, "✓ removed %s\n", args[0])
	},
}

var linksSetNameCmd = &cobra.Command{
	Use:   "set-name <url> <name>",
	Short: "Change the display name of a registered profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(a *app) error {
			return a.registry.Update(cmd.Context(), args[0], domain.LinkEntry{Name: args[1], URL: args[0]})
		}, "✓ renamed %s\n", args[0])
	},
}

func init() {
	linksAddCmd.Flags().StringVarP(&linkName, "name", "n", "", "display name")
	linksCmd.AddCommand(linksListCmd, linksAddCmd, linksRemoveCmd, linksSetNameCmd)
	rootCmd.AddCommand(linksCmd)
}

// withRegistry runs a registry mutation that needs the encryption key and
// prints a confirmation on success.
func withRegistry(cmd *cobra.Command, fn func(*app) error, format string, args ...any) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireKey(); err != nil {
		return err
	}
	if err := fn(a); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), format, args...)
	return nil
}
