// ABOUTME: Tests for the list, get, delete, post and browse commands
// ABOUTME: Exercises collection access by name against the fake backend

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/woragis/woragis-posts-frontend/content"
	"github.com/woragis/woragis-posts-frontend/internal/tui/browse"
	"github.com/woragis/woragis-posts-frontend/resource"
)

func seedPosts(t *testing.T, n int) []string {
	t.Helper()
	srv := backend(t)
	items := make([]map[string]interface{}, n)
	for i := range items {
		items[i] = map[string]interface{}{"title": fmt.Sprintf("Post %02d", i), "slug": fmt.Sprintf("post-%02d", i), "status": "draft"}
	}
	ids := srv.Seed("posts", items...)
	signIn(t)
	return ids
}

func TestRunList(t *testing.T) {
	seedPosts(t, 12)

	var buf bytes.Buffer
	if code := runList(context.Background(), &buf, "posts", 2, 5); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}
	for _, want := range []string{"Post 05", "Post 09", "Page 2 of 3", "12 total"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
		}
	}
	if strings.Contains(buf.String(), "Post 10") {
		t.Error("expected only the second page")
	}
}

func TestRunList_JSON(t *testing.T) {
	seedPosts(t, 12)
	jsonOutput = true

	var buf bytes.Buffer
	if code := runList(context.Background(), &buf, "posts", 3, 5); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}

	var page resource.Page[content.Record]
	if err := json.Unmarshal(buf.Bytes(), &page); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(page.Items) != 2 || page.Meta.Total != 12 || page.Meta.TotalPages != 3 {
		t.Errorf("unexpected page: %d items, meta %+v", len(page.Items), page.Meta)
	}
}

func TestRunList_Empty(t *testing.T) {
	backend(t)
	signIn(t)

	var buf bytes.Buffer
	if code := runList(context.Background(), &buf, "case-studies", 1, 10); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}
	if !strings.Contains(buf.String(), "No case-studies found.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRunList_UnknownCollection(t *testing.T) {
	srv := backend(t)

	var buf bytes.Buffer
	if code := runList(context.Background(), &buf, "widgets", 1, 10); code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.Contains(buf.String(), `unknown collection "widgets"`) {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if srv.Calls("GET", "/widgets") != 0 {
		t.Error("expected no request for an unknown collection")
	}
}

func TestRunList_NotSignedIn(t *testing.T) {
	srv := backend(t)

	var buf bytes.Buffer
	if code := runList(context.Background(), &buf, "posts", 1, 10); code != exitAuth {
		t.Errorf("expected exit %d, got %d: %s", exitAuth, code, buf.String())
	}
	if !strings.Contains(buf.String(), signInAdvice) {
		t.Errorf("expected sign-in advice, got %q", buf.String())
	}
	if n := srv.Calls("POST", "/auth/refresh"); n != 0 {
		t.Errorf("expected no refresh request without a refresh token, got %d", n)
	}
}

func TestRunGet(t *testing.T) {
	ids := seedPosts(t, 1)

	var buf bytes.Buffer
	if code := runGet(context.Background(), &buf, "posts", ids[0]); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}
	for _, want := range []string{ids[0], "Post 00", "post-00", "createdAt"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
		}
	}
}

func TestRunGet_NotFound(t *testing.T) {
	seedPosts(t, 1)

	var buf bytes.Buffer
	if code := runGet(context.Background(), &buf, "posts", "missing"); code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.Contains(buf.String(), "Resource not found") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRunDelete_Idempotent(t *testing.T) {
	ids := seedPosts(t, 2)

	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		if code := runDelete(context.Background(), &buf, "posts", ids[0]); code != exitOK {
			t.Fatalf("delete %d: expected exit 0, got %d: %s", i+1, code, buf.String())
		}
	}

	var buf bytes.Buffer
	runList(context.Background(), &buf, "posts", 1, 10)
	if !strings.Contains(buf.String(), "1 total") {
		t.Errorf("expected one post left, got:\n%s", buf.String())
	}
}

func TestRunPostShow(t *testing.T) {
	seedPosts(t, 3)

	var buf bytes.Buffer
	if code := runPostShow(context.Background(), &buf, "post-01"); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}
	if !strings.Contains(buf.String(), "Post 01") || !strings.Contains(buf.String(), "draft") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	if code := runPostShow(context.Background(), &buf, "nope"); code != exitFailure {
		t.Errorf("expected exit %d for unknown slug, got %d", exitFailure, code)
	}
}

func TestRunPostCreate(t *testing.T) {
	backend(t)
	signIn(t)
	jsonOutput = true

	var buf bytes.Buffer
	in := content.CreatePostRequest{Title: "Hello", Slug: "hello", Status: content.StatusPublished}
	if code := runPostCreate(context.Background(), &buf, in); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}

	var post content.Post
	if err := json.Unmarshal(buf.Bytes(), &post); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if post.ID == "" || post.Slug != "hello" || post.Status != content.StatusPublished {
		t.Errorf("unexpected post: %+v", post)
	}
}

func TestRunPostCreate_RequiresTitle(t *testing.T) {
	srv := backend(t)

	var buf bytes.Buffer
	if code := runPostCreate(context.Background(), &buf, content.CreatePostRequest{Title: "  "}); code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
	if srv.Calls("POST", "/posts") != 0 {
		t.Error("expected no request without a title")
	}
}

func TestRunBrowse(t *testing.T) {
	seedPosts(t, 7)

	var gotTitle string
	var gotItems int
	fake := func(ctx context.Context, title string, fetch browse.Fetcher, limit int) error {
		gotTitle = title
		page, err := fetch(ctx, 2, limit)
		if err != nil {
			return err
		}
		gotItems = len(page.Items)
		return nil
	}

	var buf bytes.Buffer
	if code := runBrowse(context.Background(), &buf, "posts", 5, fake); code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}
	if gotTitle != "posts" || gotItems != 2 {
		t.Errorf("expected second page of posts with 2 items, got %q with %d", gotTitle, gotItems)
	}
}

func TestRunBrowse_Error(t *testing.T) {
	backend(t)

	failing := func(context.Context, string, browse.Fetcher, int) error {
		return errors.New("terminal closed")
	}

	var buf bytes.Buffer
	if code := runBrowse(context.Background(), &buf, "posts", 5, failing); code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.Contains(buf.String(), "terminal closed") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
