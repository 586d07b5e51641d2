// ABOUTME: Content commands for postsctl: list, get, delete and post
// ABOUTME: Works on any collection by name and adds slug lookup and creation for posts

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/woragis/woragis-posts-frontend/content"
	"github.com/woragis/woragis-posts-frontend/internal/tui/browse"
	"github.com/woragis/woragis-posts-frontend/internal/tui/styles"
	"github.com/woragis/woragis-posts-frontend/resource"
	"github.com/woragis/woragis-posts-frontend/sdk"
)

var (
	listPage  int
	listLimit int
	newPost   content.CreatePostRequest
)

const collectionsHelp = `Collections: aiml-integrations, case-studies, impact-metrics, posts,
problem-solutions, publications, reports, system-designs, technical-writings`

var listCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List one page of a collection",
	Long:  "List one page of a content collection.\n\n" + collectionsHelp,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runWithSignals(func(ctx context.Context) int {
			return runList(ctx, os.Stdout, args[0], listPage, listLimit)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Show one item of a collection",
	Long:  "Show every field of one item.\n\n" + collectionsHelp,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runWithSignals(func(ctx context.Context) int {
			return runGet(ctx, os.Stdout, args[0], args[1])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete one item of a collection",
	Long:  "Delete one item. Deleting an item that no longer exists succeeds.\n\n" + collectionsHelp,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runWithSignals(func(ctx context.Context) int {
			return runDelete(ctx, os.Stdout, args[0], args[1])
		})
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Look up and create posts",
}

var postShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show a post by its slug",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runWithSignals(func(ctx context.Context) int {
			return runPostShow(ctx, os.Stdout, args[0])
		})
	},
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a post",
	Run: func(cmd *cobra.Command, args []string) {
		runWithSignals(func(ctx context.Context) int {
			return runPostCreate(ctx, os.Stdout, newPost)
		})
	},
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", resource.DefaultPage, "Page number, starting at 1")
	listCmd.Flags().IntVar(&listLimit, "limit", resource.DefaultLimit, "Items per page")

	postCreateCmd.Flags().StringVar(&newPost.Title, "title", "", "Post title (required)")
	postCreateCmd.Flags().StringVar(&newPost.Slug, "slug", "", "URL slug")
	postCreateCmd.Flags().StringVar(&newPost.Excerpt, "excerpt", "", "Short summary")
	postCreateCmd.Flags().StringVar(&newPost.Content, "content", "", "Post body")
	postCreateCmd.Flags().StringVar((*string)(&newPost.Status), "status", string(content.StatusDraft), "draft, published or archived")
	postCmd.AddCommand(postShowCmd, postCreateCmd)

	rootCmd.AddCommand(listCmd, getCmd, deleteCmd, postCmd)
}

// runWithSignals runs fn under a context cancelled by SIGINT or SIGTERM and
// exits with its code when non-zero.
func runWithSignals(fn func(ctx context.Context) int) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := fn(ctx)
	cancel()
	if code != exitOK {
		os.Exit(code)
	}
}

// withRecords resolves a collection by name and runs fn with its client.
func withRecords(ctx context.Context, w io.Writer, name string, fn func(rc *resource.Client[content.Record]) int) int {
	return withClient(ctx, w, func(c *sdk.Client) int {
		rc, err := c.Content.Records(name)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitFailure
		}
		return fn(rc)
	})
}

// runList prints one page of a collection and returns the exit code.
func runList(ctx context.Context, w io.Writer, name string, page, limit int) int {
	return withRecords(ctx, w, name, func(rc *resource.Client[content.Record]) int {
		result, err := rc.List(ctx, page, limit)
		if err != nil {
			return reportError(w, err)
		}
		if IsJSONOutput() {
			fmt.Fprintln(w, formatJSON(result))
		} else {
			fmt.Fprintln(w, formatPageHuman(name, result))
		}
		return exitOK
	})
}

// runGet prints one item and returns the exit code.
func runGet(ctx context.Context, w io.Writer, name, id string) int {
	return withRecords(ctx, w, name, func(rc *resource.Client[content.Record]) int {
		rec, err := rc.Get(ctx, id)
		if err != nil {
			return reportError(w, err)
		}
		if IsJSONOutput() {
			fmt.Fprintln(w, formatJSON(rec))
		} else {
			fmt.Fprintln(w, formatRecordHuman(*rec))
		}
		return exitOK
	})
}

// runDelete removes one item and returns the exit code.
func runDelete(ctx context.Context, w io.Writer, name, id string) int {
	return withRecords(ctx, w, name, func(rc *resource.Client[content.Record]) int {
		if err := rc.Delete(ctx, id); err != nil {
			return reportError(w, err)
		}
		fmt.Fprintf(w, "Deleted %s/%s\n", name, id)
		return exitOK
	})
}

// runPostShow prints a post looked up by slug.
func runPostShow(ctx context.Context, w io.Writer, slug string) int {
	return withClient(ctx, w, func(c *sdk.Client) int {
		post, err := c.Content.Posts.GetBySlug(ctx, slug)
		if err != nil {
			return reportError(w, err)
		}
		printPost(w, post)
		return exitOK
	})
}

// runPostCreate creates a post and prints it.
func runPostCreate(ctx context.Context, w io.Writer, in content.CreatePostRequest) int {
	if strings.TrimSpace(in.Title) == "" {
		fmt.Fprintln(w, "Error: --title is required")
		return exitFailure
	}
	return withClient(ctx, w, func(c *sdk.Client) int {
		post, err := c.Content.Posts.Create(ctx, in)
		if err != nil {
			return reportError(w, err)
		}
		printPost(w, post)
		return exitOK
	})
}

func printPost(w io.Writer, post *content.Post) {
	if IsJSONOutput() {
		fmt.Fprintln(w, formatJSON(post))
	} else {
		fmt.Fprintln(w, formatPostHuman(post))
	}
}

// formatPageHuman renders a page as a table with a paging footer.
func formatPageHuman(name string, p *resource.Page[content.Record]) string {
	if len(p.Items) == 0 {
		return fmt.Sprintf("No %s found.", name)
	}
	footer := fmt.Sprintf("Page %d of %d · %d total", p.Meta.Page, max(p.Meta.TotalPages, 1), p.Meta.Total)
	return browse.Render(p.Items) + "\n" + styles.Subtitle.Render(footer)
}

// formatRecordHuman lists every field of a record, sorted by key.
func formatRecordHuman(rec content.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := rec[k]
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			data, _ := json.Marshal(v)
			lines = append(lines, styles.Field(k, string(data)))
		default:
			lines = append(lines, styles.Field(k, rec.Text(k)))
		}
	}
	return strings.Join(lines, "\n")
}

// formatPostHuman formats a post for human readability
func formatPostHuman(p *content.Post) string {
	lines := []string{
		styles.Title.Render(p.Title),
		styles.Field("ID", p.ID),
		styles.Field("Slug", p.Slug),
		styles.Field("Status", string(p.Status)),
	}
	if p.PublishedAt != nil {
		lines = append(lines, styles.Field("Published", p.PublishedAt.Format(time.RFC3339)))
	}
	if !p.UpdatedAt.IsZero() {
		lines = append(lines, styles.Field("Updated", p.UpdatedAt.Format(time.RFC3339)))
	}
	if p.Excerpt != "" {
		lines = append(lines, "", p.Excerpt)
	}
	return strings.Join(lines, "\n")
}

func formatJSON(v interface{}) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}
