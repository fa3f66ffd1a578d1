package scraper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/pkg/types"
)

func samplePosts() []types.Post {
	return []types.Post{
		{PostID: "1", Author: types.StringPtr("Alice"), Content: types.StringPtr("Selling a road bike"), LikesCount: 20, CommentsCount: 4, GroupName: "Cyclists"},
		{PostID: "2", Author: types.StringPtr("Bob"), Content: types.StringPtr("Free sofa, pickup only"), LikesCount: 2, GroupName: "Cyclists"},
		{PostID: "3", Author: nil, Content: types.StringPtr("Road closure spam"), LikesCount: 50, SharesCount: 9, GroupName: "Runners"},
	}
}

func TestApplyFilter(t *testing.T) {
	posts := samplePosts()

	assert.True(t, scraper.ApplyFilter(posts[0], nil))
	assert.True(t, scraper.ApplyFilter(posts[0], &types.PostFilter{MinLikes: 10, Keywords: []string{"ROAD"}}))
	assert.False(t, scraper.ApplyFilter(posts[1], &types.PostFilter{MinLikes: 10}))
	assert.False(t, scraper.ApplyFilter(posts[2], &types.PostFilter{MaxLikes: 30}))
	assert.False(t, scraper.ApplyFilter(posts[2], &types.PostFilter{ExcludeKeywords: []string{"spam"}}))
	assert.False(t, scraper.ApplyFilter(posts[0], &types.PostFilter{MinComments: 5}))
	assert.True(t, scraper.ApplyFilter(posts[2], &types.PostFilter{MinShares: 5}))
	assert.True(t, scraper.ApplyFilter(posts[2], &types.PostFilter{GroupNames: []string{"runners"}}))
	assert.False(t, scraper.ApplyFilter(posts[2], &types.PostFilter{AuthorNames: []string{"Alice"}}))
}

func TestBatchFilter(t *testing.T) {
	filter := &types.PostFilter{MinLikes: 10, Keywords: []string{"road"}, ExcludeKeywords: []string{"spam"}}

	filtered, stats := scraper.BatchFilter(samplePosts(), filter)

	assert.Len(t, filtered, 1)
	assert.Equal(t, "1", filtered[0].PostID)
	assert.Equal(t, 3, stats.TotalPosts)
	assert.Equal(t, 1, stats.FilteredPosts)
	assert.Equal(t, 1, stats.LikesFiltered)
	assert.Equal(t, 1, stats.KeywordFiltered)
}

func TestBatchFilterZeroFilterKeepsAll(t *testing.T) {
	filtered, stats := scraper.BatchFilter(samplePosts(), &types.PostFilter{})
	assert.Len(t, filtered, 3)
	assert.Equal(t, 3, stats.FilteredPosts)
}

func TestBatchFilterCountsFirstFailureOnly(t *testing.T) {
	filter := &types.PostFilter{MinLikes: 10, Keywords: []string{"bike"}, AuthorNames: []string{"Alice"}}

	filtered, stats := scraper.BatchFilter(samplePosts(), filter)

	assert.Len(t, filtered, 1)
	assert.Equal(t, 1, stats.LikesFiltered)
	assert.Equal(t, 1, stats.KeywordFiltered)
	assert.Zero(t, stats.AuthorFiltered)
}

func TestBatchFilterCountsEveryDroppedPost(t *testing.T) {
	posts := samplePosts()
	now := time.Now().UTC()
	posts[0].ScrapedAt = now.Add(-time.Hour).Format(time.RFC3339)
	posts[1].ScrapedAt = now.AddDate(0, 0, -10).Format(time.RFC3339)
	posts[2].ScrapedAt = now.Format(time.RFC3339)

	filter := &types.PostFilter{GroupNames: []string{"cyclists"}, DaysBack: 7}
	filtered, stats := scraper.BatchFilter(posts, filter)

	assert.Len(t, filtered, 1)
	assert.Equal(t, "1", filtered[0].PostID)
	assert.Equal(t, 1, stats.GroupFiltered)
	assert.Equal(t, 1, stats.AgeFiltered)
	assert.Equal(t, stats.TotalPosts, stats.FilteredPosts+stats.LikesFiltered+stats.KeywordFiltered+
		stats.GroupFiltered+stats.AuthorFiltered+stats.AgeFiltered)
}

func TestApplyFilterDaysBack(t *testing.T) {
	recent := types.Post{ScrapedAt: time.Now().Add(-2 * time.Hour).Format(time.RFC3339)}
	stale := types.Post{ScrapedAt: time.Now().AddDate(0, 0, -3).Format(time.RFC3339)}

	assert.True(t, scraper.ApplyFilter(recent, &types.PostFilter{DaysBack: 1}))
	assert.False(t, scraper.ApplyFilter(stale, &types.PostFilter{DaysBack: 1}))
	assert.False(t, scraper.ApplyFilter(types.Post{}, &types.PostFilter{DaysBack: 1}))
	assert.True(t, scraper.ApplyFilter(stale, &types.PostFilter{}))
}
