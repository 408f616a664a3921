package cmd

import (
	"fmt"
	"os"

	"github.com/lukaszchomatek/aji-vision-demo/internal/history"
	"github.com/spf13/cobra"
)

func openStore(opts *options) (*history.Store, error) {
	return history.Open(opts.config.History.Path)
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the caption history",
	}
	cmd.AddCommand(newHistoryListCmd(opts))
	cmd.AddCommand(newHistoryClearCmd(opts))
	cmd.AddCommand(newHistoryExportCmd(opts))
	return cmd
}

func newHistoryListCmd(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Shutdown()

			items, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			limit := opts.config.History.Limit
			if all {
				limit = len(items)
			}
			for _, item := range history.Recent(items, limit) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-28s  %s\n", item.Timestamp, item.TimeLabel, item.Caption)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every stored item instead of the display limit")

	return cmd
}

func newHistoryClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every history item",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Shutdown()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
}

func newHistoryExportCmd(opts *options) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Export the history as yaml or rss",
		Example: `  caption history export --format rss --output history.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Shutdown()

			items, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			data, err := history.Export(history.Recent(items, len(items)), format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0644)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", history.FormatYAML, "Export format (yaml or rss)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}
