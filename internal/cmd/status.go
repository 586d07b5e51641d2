// ABOUTME: Status command for postsctl
// ABOUTME: Shows the session and the item count of every content collection

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/woragis/woragis-posts-frontend/internal/tui/styles"
	"github.com/woragis/woragis-posts-frontend/sdk"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session and content totals",
	Long: `Display the signed-in user followed by the number of items in every collection.
The collections are counted concurrently and share a single token refresh.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runStatus(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the JSON shape of the status command.
type statusReport struct {
	Session     sessionInfo           `json:"session"`
	Collections []sdk.CollectionTotal `json:"collections,omitempty"`
}

// runStatus executes the status check and returns exit code
func runStatus(ctx context.Context, w io.Writer) int {
	return withClient(ctx, w, func(c *sdk.Client) int {
		report := statusReport{Session: describeSession(ctx, c)}
		if !report.Session.Authenticated {
			printStatus(w, report)
			return exitAuth
		}

		totals, err := c.Overview(ctx)
		if err != nil {
			return reportError(w, err)
		}
		report.Collections = totals
		printStatus(w, report)
		return exitOK
	})
}

func printStatus(w io.Writer, report statusReport) {
	if IsJSONOutput() {
		fmt.Fprintln(w, formatStatusJSON(report))
	} else {
		fmt.Fprintln(w, formatStatusHuman(report))
	}
}

// formatStatusHuman formats status for human readability
func formatStatusHuman(report statusReport) string {
	var b strings.Builder
	b.WriteString(formatWhoamiHuman(report.Session))
	if len(report.Collections) == 0 {
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(styles.Subtitle.Render("Collections"))
	total := 0
	for _, ct := range report.Collections {
		b.WriteString("\n")
		b.WriteString(styles.Field(ct.Name, strconv.Itoa(ct.Total)))
		total += ct.Total
	}
	b.WriteString("\n")
	b.WriteString(styles.Field("total", strconv.Itoa(total)))
	return b.String()
}

// formatStatusJSON formats status as JSON
func formatStatusJSON(report statusReport) string {
	data, _ := json.MarshalIndent(report, "", "  ")
	return string(data)
}
