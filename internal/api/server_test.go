package api_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facebook-group-scraper/internal/api"
	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/database"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/pkg/types"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Count   int             `json:"count"`
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupServer(t *testing.T, monitor *monitoring.Monitor) (*httptest.Server, *database.DB) {
	t.Helper()
	logger := quietLogger()

	db, err := database.NewConnection(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))

	now := time.Now().UTC()
	_, err = db.SavePosts(context.Background(), []types.Post{
		post("1", "Alice", "Cyclists", 40, now.Add(-3*time.Hour)),
		post("2", "Bob", "Cyclists", 2, now.Add(-2*time.Hour)),
		post("3", "Alice", "Runners", 15, now.Add(-1*time.Hour)),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewServer(db, monitor, logger, 0).Handler())
	t.Cleanup(srv.Close)
	return srv, db
}

func post(id, author, group string, likes int, scrapedAt time.Time) types.Post {
	return types.Post{
		PostID:     id,
		Author:     types.StringPtr(author),
		Content:    types.StringPtr("Weekend ride report number " + id),
		Timestamp:  "1h",
		PostURL:    "https://www.facebook.com/groups/x/posts/" + id,
		LikesCount: likes,
		GroupName:  group,
		Images:     []types.Image{},
		ScrapedAt:  scrapedAt.Format(time.RFC3339),
	}
}

func get(t *testing.T, url string) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, env := get(t, srv.URL+"/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "connected")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPostsPaging(t *testing.T) {
	srv, _ := setupServer(t, nil)

	_, env := get(t, srv.URL+"/api/posts?page=1&page_size=2")
	require.True(t, env.Success)

	var page api.PostsResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "3", page.Posts[0].PostID)
	assert.Equal(t, "2", page.Posts[1].PostID)

	_, env = get(t, srv.URL+"/api/posts?page=2&page_size=2")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "1", page.Posts[0].PostID)

	_, env = get(t, srv.URL+"/api/posts?min_likes=10")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "1", page.Posts[0].PostID)
	assert.Equal(t, 2, env.Count)
}

func TestPostLookupAndDelete(t *testing.T) {
	srv, db := setupServer(t, nil)

	resp, env := get(t, srv.URL+"/api/posts/1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var p types.Post
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "Alice", p.AuthorName())

	resp, env = get(t, srv.URL+"/api/posts/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/posts/1", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	count, err := db.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGroupsAndGroupPosts(t *testing.T) {
	srv, _ := setupServer(t, nil)

	_, env := get(t, srv.URL+"/api/groups")
	var groups []database.GroupCount
	require.NoError(t, json.Unmarshal(env.Data, &groups))
	assert.Equal(t, []database.GroupCount{{GroupName: "Cyclists", Posts: 2}, {GroupName: "Runners", Posts: 1}}, groups)

	_, env = get(t, srv.URL+"/api/groups/Runners/posts")
	var posts []types.Post
	require.NoError(t, json.Unmarshal(env.Data, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "3", posts[0].PostID)
}

func TestStatsAuthorsTrends(t *testing.T) {
	srv, _ := setupServer(t, nil)

	_, env := get(t, srv.URL+"/api/stats?threshold=20")
	var stats database.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3, stats.TotalPosts)
	assert.Equal(t, 1, stats.HighEngagementPosts)

	resp, env := get(t, srv.URL+"/api/stats?threshold=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)

	_, env = get(t, srv.URL+"/api/authors?limit=1")
	var authors []database.AuthorStats
	require.NoError(t, json.Unmarshal(env.Data, &authors))
	require.Len(t, authors, 1)
	assert.Equal(t, "Alice", authors[0].Author)

	_, env = get(t, srv.URL+"/api/trends?days=7")
	var trends []database.DailyCount
	require.NoError(t, json.Unmarshal(env.Data, &trends))
	total := 0
	for _, d := range trends {
		total += d.Posts
	}
	assert.Equal(t, 3, total)
}

func TestDaysBack(t *testing.T) {
	srv, db := setupServer(t, nil)
	_, err := db.SavePosts(context.Background(), []types.Post{
		post("4", "Carol", "Runners", 90, time.Now().UTC().AddDate(0, 0, -10)),
	})
	require.NoError(t, err)

	_, env := get(t, srv.URL+"/api/posts?days_back=5")
	var page api.PostsResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 3)
	for _, p := range page.Posts {
		assert.NotEqual(t, "4", p.PostID)
	}

	_, env = get(t, srv.URL+"/api/posts?days_back=5&min_likes=10")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "1", page.Posts[0].PostID)

	resp, err := http.Get(srv.URL + "/api/export/json?days_back=30")
	require.NoError(t, err)
	defer resp.Body.Close()
	var posts []types.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posts))
	assert.Len(t, posts, 4)
}

func TestExportCSV(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/export/csv?min_likes=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "facebook_posts_")

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[1][0])
}

func TestExportJSON(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/export/json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var posts []types.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posts))
	assert.Len(t, posts, 3)
}

func TestMetrics(t *testing.T) {
	srv, _ := setupServer(t, nil)
	resp, _ := get(t, srv.URL+"/api/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	monitor := monitoring.NewMonitor(quietLogger(), config.Default().Monitor)
	monitored := httptest.NewServer(api.NewServer(nil, monitor, quietLogger(), 0).Handler())
	defer monitored.Close()

	resp, env := get(t, monitored.URL+"/api/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), "health")
}

func TestDashboard(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, err := http.Get(srv.URL + "/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "echarts")
	assert.Contains(t, string(body), "Cyclists")
}

func TestPreflight(t *testing.T) {
	srv, _ := setupServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/posts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
