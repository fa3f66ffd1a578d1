// Package export writes scraped records to JSON and CSV files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"facebook-group-scraper/pkg/types"
)

var csvHeader = []string{
	"post_id", "author", "content", "timestamp", "post_url", "likes_count",
	"comments_count", "shares_count", "group_name", "images", "scraped_at", "screenshot_path",
}

// WriteJSON writes records as an indented JSON array. A nil slice is written
// as an empty array.
func WriteJSON(records []types.Post, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := EncodeJSON(f, records); err != nil {
		return err
	}
	return f.Close()
}

// EncodeJSON writes records to w in the WriteJSON format.
func EncodeJSON(w io.Writer, records []types.Post) error {
	if records == nil {
		records = []types.Post{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode posts: %w", err)
	}
	return nil
}

// ReadJSON loads records written by WriteJSON.
func ReadJSON(path string) ([]types.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var records []types.Post
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}

// WriteCSV writes one row per record. Image sources are joined with "|".
func WriteCSV(records []types.Post, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := EncodeCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}

// EncodeCSV writes the header and one row per record to out.
func EncodeCSV(out io.Writer, records []types.Post) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range records {
		srcs := make([]string, len(p.Images))
		for i, img := range p.Images {
			srcs[i] = img.Src
		}
		row := []string{
			p.PostID,
			p.AuthorName(),
			p.Text(),
			p.Timestamp,
			p.PostURL,
			strconv.Itoa(p.LikesCount),
			strconv.Itoa(p.CommentsCount),
			strconv.Itoa(p.SharesCount),
			p.GroupName,
			strings.Join(srcs, "|"),
			p.ScrapedAt,
			p.ScreenshotPath,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Write exports records in format ("json", "csv" or "both") under dir and
// returns the written paths.
func Write(records []types.Post, dir, format, prefix string, now time.Time) ([]string, error) {
	base := filepath.Join(dir, fmt.Sprintf("%s_%s", prefix, now.Format("20060102_150405")))

	var paths []string
	format = strings.ToLower(format)
	if format == "json" || format == "both" {
		path := base + ".json"
		if err := WriteJSON(records, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if format == "csv" || format == "both" {
		path := base + ".csv"
		if err := WriteCSV(records, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
	return paths, nil
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
