package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"facebook-group-scraper/internal/database/models"
	"facebook-group-scraper/pkg/types"
)

var ErrNotFound = errors.New("post not found")

const postColumns = `id, post_id, author, content, timestamp, post_url, likes_count,
       comments_count, shares_count, group_name, images, screenshot_path, scraped_at`

// SavePosts inserts records, silently skipping post ids already stored, and
// returns how many rows were inserted.
func (db *DB) SavePosts(ctx context.Context, posts []types.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`
        INSERT INTO posts (
            post_id, author, content, timestamp, post_url, likes_count,
            comments_count, shares_count, group_name, images, screenshot_path, scraped_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (post_id) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range posts {
		row := models.FromRecord(p)
		res, err := stmt.ExecContext(ctx,
			row.PostID, row.Author, row.Content, row.Timestamp, row.PostURL, row.Likes,
			row.Comments, row.Shares, row.GroupName, row.Images, row.ScreenshotPath, row.ScrapedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert post %s: %w", p.PostID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit posts: %w", err)
	}

	db.logger.Infof("Saved %d new posts (%d duplicates skipped)", inserted, len(posts)-inserted)
	return inserted, nil
}

// GetPosts returns stored posts, newest first. A non-positive limit returns all.
func (db *DB) GetPosts(ctx context.Context, limit, offset int) ([]types.Post, error) {
	return db.queryPosts(ctx, `
        SELECT `+postColumns+`
        FROM posts
        ORDER BY scraped_at DESC, id DESC
        LIMIT ? OFFSET ?`, normalizeLimit(limit), offset)
}

func (db *DB) GetPostsByGroup(ctx context.Context, groupName string, limit int) ([]types.Post, error) {
	return db.queryPosts(ctx, `
        SELECT `+postColumns+`
        FROM posts
        WHERE group_name = ?
        ORDER BY scraped_at DESC, id DESC
        LIMIT ?`, groupName, normalizeLimit(limit))
}

// GetPostsWithMinLikes returns posts at or above minLikes, most liked first.
func (db *DB) GetPostsWithMinLikes(ctx context.Context, minLikes, limit int) ([]types.Post, error) {
	return db.queryPosts(ctx, `
        SELECT `+postColumns+`
        FROM posts
        WHERE likes_count >= ?
        ORDER BY likes_count DESC, scraped_at DESC
        LIMIT ?`, minLikes, normalizeLimit(limit))
}

func (db *DB) GetPost(ctx context.Context, postID string) (*types.Post, error) {
	posts, err := db.queryPosts(ctx, `
        SELECT `+postColumns+`
        FROM posts
        WHERE post_id = ?`, postID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

func (db *DB) queryPosts(ctx context.Context, query string, args ...interface{}) ([]types.Post, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		post := &models.Post{}
		err := rows.Scan(
			&post.ID, &post.PostID, &post.Author, &post.Content, &post.Timestamp,
			&post.PostURL, &post.Likes, &post.Comments, &post.Shares, &post.GroupName,
			&post.Images, &post.ScreenshotPath, &post.ScrapedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}

// CountPosts returns the number of stored posts
func (db *DB) CountPosts(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// DeletePost reports whether a post was removed.
func (db *DB) DeletePost(ctx context.Context, postID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, db.rebind("DELETE FROM posts WHERE post_id = ?"), postID)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearPosts removes every post and returns how many were deleted.
func (db *DB) ClearPosts(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM posts")
	if err != nil {
		return 0, fmt.Errorf("failed to clear posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	db.logger.Infof("Cleared %d posts", n)
	return n, nil
}

type Stats struct {
	TotalPosts          int     `json:"total_posts"`
	GroupsScraped       int     `json:"groups_scraped"`
	TotalLikes          int     `json:"total_likes"`
	TotalComments       int     `json:"total_comments"`
	TotalShares         int     `json:"total_shares"`
	AverageLikes        float64 `json:"average_likes"`
	HighEngagementPosts int     `json:"high_engagement_posts"`
	TopGroup            string  `json:"top_group"`
	LastScrapedAt       string  `json:"last_scraped_at"`
}

// GetStats returns aggregate statistics. Posts whose engagement score
// (likes + 2*comments + 3*shares) reaches threshold count as high engagement.
func (db *DB) GetStats(ctx context.Context, threshold float64) (*Stats, error) {
	stats := &Stats{}

	var avgLikes sql.NullFloat64
	var lastScraped sql.NullString
	err := db.conn.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COUNT(DISTINCT group_name),
               COALESCE(SUM(likes_count), 0),
               COALESCE(SUM(comments_count), 0),
               COALESCE(SUM(shares_count), 0),
               AVG(likes_count),
               MAX(scraped_at)
        FROM posts`).Scan(
		&stats.TotalPosts, &stats.GroupsScraped, &stats.TotalLikes,
		&stats.TotalComments, &stats.TotalShares, &avgLikes, &lastScraped,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get post totals: %w", err)
	}
	if avgLikes.Valid {
		stats.AverageLikes = avgLikes.Float64
	}
	if lastScraped.Valid {
		stats.LastScrapedAt = lastScraped.String
	} else {
		stats.LastScrapedAt = "Never"
	}

	err = db.conn.QueryRowContext(ctx, db.rebind(`
        SELECT COUNT(*) FROM posts
        WHERE likes_count + 2 * comments_count + 3 * shares_count >= CAST(? AS DOUBLE PRECISION)`), threshold).Scan(&stats.HighEngagementPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to get high engagement posts: %w", err)
	}

	var topGroup sql.NullString
	err = db.conn.QueryRowContext(ctx, `
        SELECT group_name FROM posts
        GROUP BY group_name
        ORDER BY COUNT(*) DESC, group_name ASC
        LIMIT 1`).Scan(&topGroup)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get top group: %w", err)
	}
	if topGroup.Valid {
		stats.TopGroup = topGroup.String
	} else {
		stats.TopGroup = "None"
	}

	return stats, nil
}

type AuthorStats struct {
	Author    string  `json:"author_name"`
	PostCount int     `json:"post_count"`
	AvgLikes  float64 `json:"avg_likes"`
}

// GetTopAuthors returns authors with the most posts
func (db *DB) GetTopAuthors(ctx context.Context, limit int) ([]AuthorStats, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
        SELECT author, COUNT(*) AS post_count, AVG(likes_count) AS avg_likes
        FROM posts
        WHERE author IS NOT NULL
        GROUP BY author
        ORDER BY post_count DESC, avg_likes DESC, author ASC
        LIMIT ?`), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top authors: %w", err)
	}
	defer rows.Close()

	var authors []AuthorStats
	for rows.Next() {
		var a AuthorStats
		var avg sql.NullFloat64
		if err := rows.Scan(&a.Author, &a.PostCount, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		a.AvgLikes = avg.Float64
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

type GroupCount struct {
	GroupName string `json:"group_name"`
	Posts     int    `json:"posts"`
}

func (db *DB) GetGroupCounts(ctx context.Context) ([]GroupCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
        SELECT group_name, COUNT(*) FROM posts
        GROUP BY group_name
        ORDER BY COUNT(*) DESC, group_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query group counts: %w", err)
	}
	defer rows.Close()

	var groups []GroupCount
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.GroupName, &g.Posts); err != nil {
			return nil, fmt.Errorf("failed to scan group count: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

type DailyCount struct {
	Date     string  `json:"date"`
	Posts    int     `json:"posts_count"`
	AvgLikes float64 `json:"avg_likes"`
	MaxLikes int     `json:"max_likes"`
}

// GetEngagementTrends returns per-day totals keyed by the scrape date
func (db *DB) GetEngagementTrends(ctx context.Context, since string) ([]DailyCount, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
        SELECT substr(scraped_at, 1, 10) AS day,
               COUNT(*),
               AVG(likes_count),
               MAX(likes_count)
        FROM posts
        WHERE scraped_at >= ?
        GROUP BY substr(scraped_at, 1, 10)
        ORDER BY day ASC`), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement trends: %w", err)
	}
	defer rows.Close()

	var trends []DailyCount
	for rows.Next() {
		var d DailyCount
		var avg sql.NullFloat64
		if err := rows.Scan(&d.Date, &d.Posts, &avg, &d.MaxLikes); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		d.AvgLikes = avg.Float64
		trends = append(trends, d)
	}
	return trends, rows.Err()
}
