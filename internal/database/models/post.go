package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"facebook-group-scraper/pkg/types"
)

// Post is the row shape of the posts table.
type Post struct {
	ID             int64          `json:"id" db:"id"`
	PostID         string         `json:"post_id" db:"post_id"`
	Author         sql.NullString `json:"author" db:"author"`
	Content        sql.NullString `json:"content" db:"content"`
	Timestamp      string         `json:"timestamp" db:"timestamp"`
	PostURL        string         `json:"post_url" db:"post_url"`
	Likes          int            `json:"likes_count" db:"likes_count"`
	Comments       int            `json:"comments_count" db:"comments_count"`
	Shares         int            `json:"shares_count" db:"shares_count"`
	GroupName      string         `json:"group_name" db:"group_name"`
	Images         ImageList      `json:"images" db:"images"`
	ScreenshotPath string         `json:"screenshot_path" db:"screenshot_path"`
	ScrapedAt      string         `json:"scraped_at" db:"scraped_at"`
}

func FromRecord(p types.Post) *Post {
	return &Post{
		PostID:         p.PostID,
		Author:         nullString(p.Author),
		Content:        nullString(p.Content),
		Timestamp:      p.Timestamp,
		PostURL:        p.PostURL,
		Likes:          p.LikesCount,
		Comments:       p.CommentsCount,
		Shares:         p.SharesCount,
		GroupName:      p.GroupName,
		Images:         ImageList(p.Images),
		ScreenshotPath: p.ScreenshotPath,
		ScrapedAt:      p.ScrapedAt,
	}
}

// Record converts the row back to the wire shape.
func (p *Post) Record() types.Post {
	images := []types.Image(p.Images)
	if images == nil {
		images = []types.Image{}
	}
	return types.Post{
		PostID:         p.PostID,
		Author:         stringPtr(p.Author),
		Content:        stringPtr(p.Content),
		Timestamp:      p.Timestamp,
		PostURL:        p.PostURL,
		LikesCount:     p.Likes,
		CommentsCount:  p.Comments,
		SharesCount:    p.Shares,
		GroupName:      p.GroupName,
		Images:         images,
		ScrapedAt:      p.ScrapedAt,
		ScreenshotPath: p.ScreenshotPath,
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return types.StringPtr(ns.String)
}

// ImageList stores images as a JSON array.
type ImageList []types.Image

func (il ImageList) Value() (driver.Value, error) {
	if len(il) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(il)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (il *ImageList) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*il = ImageList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for images: %T", value)
	}
	if len(data) == 0 {
		*il = ImageList{}
		return nil
	}
	return json.Unmarshal(data, il)
}
