package scraper

import (
	"strings"

	"facebook-group-scraper/internal/utils"
	"facebook-group-scraper/pkg/types"
)

type filterReason int

const (
	keep filterReason = iota
	byEngagement
	byKeyword
	byGroup
	byAuthor
	byAge
)

// ApplyFilter reports whether post passes every criterion set on filter.
// A nil filter accepts everything.
func ApplyFilter(post types.Post, filter *types.PostFilter) bool {
	return firstFailure(post, filter) == keep
}

// firstFailure returns the first criterion post fails, in the order
// engagement, keywords, group, author, age.
func firstFailure(post types.Post, f *types.PostFilter) filterReason {
	if f == nil {
		return keep
	}

	switch {
	case f.MinLikes > 0 && post.LikesCount < f.MinLikes,
		f.MaxLikes > 0 && post.LikesCount > f.MaxLikes,
		f.MinComments > 0 && post.CommentsCount < f.MinComments,
		f.MinShares > 0 && post.SharesCount < f.MinShares:
		return byEngagement
	}

	text := strings.ToLower(post.Text())
	if len(f.Keywords) > 0 && !containsAny(text, f.Keywords) {
		return byKeyword
	}
	if containsAny(text, f.ExcludeKeywords) {
		return byKeyword
	}

	if len(f.GroupNames) > 0 && !equalFoldAny(post.GroupName, f.GroupNames) {
		return byGroup
	}
	if len(f.AuthorNames) > 0 && !equalFoldAny(post.AuthorName(), f.AuthorNames) {
		return byAuthor
	}
	if f.DaysBack > 0 && !utils.ScrapedWithinDays(post.ScrapedAt, f.DaysBack) {
		return byAge
	}
	return keep
}

// BatchFilter keeps the posts that pass filter. Each dropped post is counted
// once, under the first criterion it failed.
func BatchFilter(posts []types.Post, filter *types.PostFilter) ([]types.Post, types.FilterStats) {
	stats := types.FilterStats{TotalPosts: len(posts)}
	if filter == nil || filter.IsZero() {
		stats.FilteredPosts = len(posts)
		return posts, stats
	}

	kept := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		switch firstFailure(p, filter) {
		case keep:
			kept = append(kept, p)
		case byEngagement:
			stats.LikesFiltered++
		case byKeyword:
			stats.KeywordFiltered++
		case byGroup:
			stats.GroupFiltered++
		case byAuthor:
			stats.AuthorFiltered++
		case byAge:
			stats.AgeFiltered++
		}
	}

	stats.FilteredPosts = len(kept)
	return kept, stats
}

// containsAny reports whether lowered text contains any needle, ignoring case.
func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func equalFoldAny(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}
