package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"facebook-group-scraper/internal/database"
)

// handleDashboard renders stored posts as three charts: posts per group,
// the most active authors and daily volume over the last month.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	groups, err := s.db.GetGroupCounts(r.Context())
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch groups: %v", err), http.StatusInternalServerError)
		return
	}
	authors, err := s.db.GetTopAuthors(r.Context(), defaultAuthors)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch authors: %v", err), http.StatusInternalServerError)
		return
	}
	trends, err := s.trends(r.Context(), defaultDays)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch trends: %v", err), http.StatusInternalServerError)
		return
	}

	page := components.NewPage()
	page.AddCharts(groupPie(groups), authorBar(authors), trendLine(trends))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeError(w, fmt.Sprintf("Failed to render dashboard: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func groupPie(groups []database.GroupCount) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Posts by Group"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	items := make([]opts.PieData, 0, len(groups))
	for _, g := range groups {
		items = append(items, opts.PieData{Name: g.GroupName, Value: g.Posts})
	}
	pie.AddSeries("Posts", items)
	return pie
}

func authorBar(authors []database.AuthorStats) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Top Authors"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	names := make([]string, 0, len(authors))
	posts := make([]opts.BarData, 0, len(authors))
	likes := make([]opts.BarData, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.Author)
		posts = append(posts, opts.BarData{Value: a.PostCount})
		likes = append(likes, opts.BarData{Value: fmt.Sprintf("%.1f", a.AvgLikes)})
	}
	bar.SetXAxis(names).
		AddSeries("Posts", posts).
		AddSeries("Avg likes", likes)
	return bar
}

func trendLine(trends []database.DailyCount) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Daily Volume", Subtitle: fmt.Sprintf("last %d days", defaultDays)}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	days := make([]string, 0, len(trends))
	posts := make([]opts.LineData, 0, len(trends))
	maxLikes := make([]opts.LineData, 0, len(trends))
	for _, d := range trends {
		days = append(days, d.Date)
		posts = append(posts, opts.LineData{Value: d.Posts})
		maxLikes = append(maxLikes, opts.LineData{Value: d.MaxLikes})
	}
	line.SetXAxis(days).
		AddSeries("Posts", posts).
		AddSeries("Max likes", maxLikes)
	return line
}
