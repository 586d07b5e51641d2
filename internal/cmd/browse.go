// ABOUTME: Browse command for postsctl
// ABOUTME: Opens a full-screen pager over one content collection

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/woragis/woragis-posts-frontend/content"
	"github.com/woragis/woragis-posts-frontend/internal/tui/browse"
	"github.com/woragis/woragis-posts-frontend/resource"
)

var browseLimit int

var browseCmd = &cobra.Command{
	Use:   "browse <collection>",
	Short: "Page through a collection interactively",
	Long:  "Open a full-screen table over a collection. Pages are fetched on demand.\n\n" + collectionsHelp,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !stdinIsTerminal() {
			fmt.Fprintln(os.Stderr, "Error: browse needs a terminal; use 'postsctl list' instead")
			os.Exit(exitFailure)
		}
		runWithSignals(func(ctx context.Context) int {
			return runBrowse(ctx, os.Stderr, args[0], browseLimit, browse.Run)
		})
	},
}

func init() {
	browseCmd.Flags().IntVar(&browseLimit, "limit", resource.DefaultLimit, "Items per page")
	rootCmd.AddCommand(browseCmd)
}

// browserFunc matches browse.Run so tests can skip the terminal program.
type browserFunc func(ctx context.Context, title string, fetch browse.Fetcher, limit int) error

// runBrowse resolves the collection and hands its pages to run.
func runBrowse(ctx context.Context, w io.Writer, name string, limit int, run browserFunc) int {
	return withRecords(ctx, w, name, func(rc *resource.Client[content.Record]) int {
		if err := run(ctx, name, rc.List, limit); err != nil {
			return reportError(w, err)
		}
		return exitOK
	})
}
