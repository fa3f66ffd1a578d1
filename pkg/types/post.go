package types

import (
	"fmt"
)

const (
	UnknownTimestamp = "Unknown"
	UnknownGroup     = "Unknown Group"

	// DefaultHighEngagementThreshold matches the weighted score used for
	// reporting: likes + 2*comments + 3*shares.
	DefaultHighEngagementThreshold = 10.0
)

// Post is the normalized record handed from the scraper to persistence and
// export. JSON keys are the wire contract shared with the database layer.
type Post struct {
	PostID         string  `json:"post_id"`
	Author         *string `json:"author"`
	Content        *string `json:"content"`
	Timestamp      string  `json:"timestamp"`
	PostURL        string  `json:"post_url"`
	LikesCount     int     `json:"likes_count"`
	CommentsCount  int     `json:"comments_count"`
	SharesCount    int     `json:"shares_count"`
	GroupName      string  `json:"group_name"`
	Images         []Image `json:"images"`
	ScrapedAt      string  `json:"scraped_at"`
	ScreenshotPath string  `json:"screenshot_path,omitempty"`
}

type Image struct {
	Src         string `json:"src"`
	Alt         string `json:"alt"`
	Title       string `json:"title"`
	SourceClass string `json:"source_class"`
}

// AuthorName returns the author or an empty string.
func (p Post) AuthorName() string {
	if p.Author == nil {
		return ""
	}
	return *p.Author
}

// Text returns the content or an empty string.
func (p Post) Text() string {
	if p.Content == nil {
		return ""
	}
	return *p.Content
}

func (p Post) EngagementScore() float64 {
	return float64(p.LikesCount) + float64(p.CommentsCount)*2 + float64(p.SharesCount)*3
}

func (p Post) IsHighEngagement(threshold float64) bool {
	return p.EngagementScore() >= threshold
}

// StringPtr is a helper for building records with nullable text fields.
func StringPtr(s string) *string {
	return &s
}

type PostFilter struct {
	MinLikes        int      `json:"min_likes" yaml:"min_likes"`
	MaxLikes        int      `json:"max_likes" yaml:"max_likes"`
	MinComments     int      `json:"min_comments" yaml:"min_comments"`
	MinShares       int      `json:"min_shares" yaml:"min_shares"`
	Keywords        []string `json:"keywords" yaml:"keywords"`
	ExcludeKeywords []string `json:"exclude_keywords" yaml:"exclude_keywords"`
	GroupNames      []string `json:"group_names" yaml:"group_names"`
	AuthorNames     []string `json:"author_names" yaml:"author_names"`
	// DaysBack keeps posts scraped within the last n days.
	DaysBack int `json:"days_back" yaml:"days_back"`
}

// IsZero reports whether the filter would accept every post.
func (f PostFilter) IsZero() bool {
	return f.MinLikes == 0 && f.MaxLikes == 0 && f.MinComments == 0 && f.MinShares == 0 &&
		len(f.Keywords) == 0 && len(f.ExcludeKeywords) == 0 &&
		len(f.GroupNames) == 0 && len(f.AuthorNames) == 0 && f.DaysBack == 0
}

type FilterStats struct {
	TotalPosts      int `json:"total_posts"`
	FilteredPosts   int `json:"filtered_posts"`
	LikesFiltered   int `json:"likes_filtered"`
	KeywordFiltered int `json:"keyword_filtered"`
	GroupFiltered   int `json:"group_filtered"`
	AuthorFiltered  int `json:"author_filtered"`
	AgeFiltered     int `json:"age_filtered"`
}

func (fs FilterStats) String() string {
	return fmt.Sprintf("Total: %d, Filtered: %d, Likes: %d, Keywords: %d, Groups: %d, Authors: %d, Age: %d",
		fs.TotalPosts, fs.FilteredPosts, fs.LikesFiltered, fs.KeywordFiltered, fs.GroupFiltered, fs.AuthorFiltered, fs.AgeFiltered)
}
