package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/database"
	"facebook-group-scraper/internal/export"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/internal/utils"
	"facebook-group-scraper/pkg/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultAuthors  = 10
	defaultDays     = 30
)

type Server struct {
	db      *database.DB
	monitor *monitoring.Monitor
	logger  *logrus.Logger
	port    int
	now     func() time.Time
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   int         `json:"count,omitempty"`
}

type PostsResponse struct {
	Posts      []types.Post `json:"posts"`
	TotalCount int          `json:"total_count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
}

// NewServer builds the read-only API over db. monitor may be nil, in which
// case /api/metrics reports 404.
func NewServer(db *database.DB, monitor *monitoring.Monitor, logger *logrus.Logger, port int) *Server {
	return &Server{
		db:      db,
		monitor: monitor,
		logger:  logger,
		port:    port,
		now:     time.Now,
	}
}

// Handler returns the routed handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors)

	r.Get("/", s.handleRoot)
	r.Get("/dashboard", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/posts", s.handlePosts)
		r.Get("/posts/{postID}", s.handlePost)
		r.Delete("/posts/{postID}", s.handleDeletePost)
		r.Get("/groups", s.handleGroups)
		r.Get("/groups/{group}/posts", s.handlePostsByGroup)
		r.Get("/stats", s.handleStats)
		r.Get("/authors", s.handleAuthors)
		r.Get("/trends", s.handleTrends)
		r.Get("/export/csv", s.handleExportCSV)
		r.Get("/export/json", s.handleExportJSON)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting API server on port %d", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("Handled request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]string{
			"message":   "Facebook Group Scraper API",
			"version":   "1.0.0",
			"endpoints": "/api/posts, /api/groups, /api/stats, /api/authors, /api/trends, /api/export/csv, /api/export/json, /api/metrics, /dashboard",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, "Database connection failed", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"timestamp": s.now().Format(time.RFC3339),
			"database":  "connected",
		},
	})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := intParam(q.Get("page_size"), defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	filter := queryFilter(r)

	var (
		posts []types.Post
		err   error
	)
	if !filter.IsZero() {
		posts, err = s.filteredPosts(r.Context(), filter)
		if err == nil {
			posts = pageOf(posts, page, pageSize)
		}
	} else {
		posts, err = s.db.GetPosts(r.Context(), pageSize, (page-1)*pageSize)
	}
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts: %v", err), http.StatusInternalServerError)
		return
	}

	total, err := s.db.CountPosts(r.Context())
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to get total count: %v", err), http.StatusInternalServerError)
		return
	}

	if posts == nil {
		posts = []types.Post{}
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: PostsResponse{
			Posts:      posts,
			TotalCount: total,
			Page:       page,
			PageSize:   pageSize,
		},
		Count: len(posts),
	})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.db.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if errors.Is(err, database.ErrNotFound) {
		s.writeError(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch post: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: post})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	deleted, err := s.db.DeletePost(r.Context(), postID)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to delete post: %v", err), http.StatusInternalServerError)
		return
	}
	if !deleted {
		s.writeError(w, "Post not found", http.StatusNotFound)
		return
	}
	s.logger.Infof("Deleted post %s", postID)
	s.writeJSON(w, APIResponse{Success: true, Data: map[string]string{"deleted": postID}})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.db.GetGroupCounts(r.Context())
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch groups: %v", err), http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []database.GroupCount{}
	}
	s.writeJSON(w, APIResponse{Success: true, Data: groups, Count: len(groups)})
}

func (s *Server) handlePostsByGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	limit := intParam(r.URL.Query().Get("limit"), 50)
	if limit < 1 || limit > maxPageSize {
		limit = 50
	}

	posts, err := s.db.GetPostsByGroup(r.Context(), group, limit)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts for group: %v", err), http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []types.Post{}
	}
	s.writeJSON(w, APIResponse{Success: true, Data: posts, Count: len(posts)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	threshold := float64(types.DefaultHighEngagementThreshold)
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			s.writeError(w, "threshold must be a non-negative number", http.StatusBadRequest)
			return
		}
		threshold = f
	}

	stats, err := s.db.GetStats(r.Context(), threshold)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch stats: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: stats})
}

func (s *Server) handleAuthors(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), defaultAuthors)
	if limit < 1 || limit > maxPageSize {
		limit = defaultAuthors
	}
	authors, err := s.db.GetTopAuthors(r.Context(), limit)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch authors: %v", err), http.StatusInternalServerError)
		return
	}
	if authors == nil {
		authors = []database.AuthorStats{}
	}
	s.writeJSON(w, APIResponse{Success: true, Data: authors, Count: len(authors)})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := s.trends(r.Context(), intParam(r.URL.Query().Get("days"), defaultDays))
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch trends: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: trends, Count: len(trends)})
}

func (s *Server) trends(ctx context.Context, days int) ([]database.DailyCount, error) {
	if days < 1 {
		days = defaultDays
	}
	since := utils.GetDateDaysAgo(days).Format("2006-01-02")
	trends, err := s.db.GetEngagementTrends(ctx, since)
	if trends == nil && err == nil {
		trends = []database.DailyCount{}
	}
	return trends, err
}

func (s *Server) exportPosts(r *http.Request) ([]types.Post, error) {
	return s.filteredPosts(r.Context(), queryFilter(r))
}

// queryFilter reads min_likes and days_back from the query string.
func queryFilter(r *http.Request) types.PostFilter {
	q := r.URL.Query()
	return types.PostFilter{
		MinLikes: intParam(q.Get("min_likes"), 0),
		DaysBack: intParam(q.Get("days_back"), 0),
	}
}

// filteredPosts loads every post passing filter. min_likes switches ordering
// to most liked first.
func (s *Server) filteredPosts(ctx context.Context, filter types.PostFilter) ([]types.Post, error) {
	var (
		posts []types.Post
		err   error
	)
	if filter.MinLikes > 0 {
		posts, err = s.db.GetPostsWithMinLikes(ctx, filter.MinLikes, 0)
	} else {
		posts, err = s.db.GetPosts(ctx, 0, 0)
	}
	if err != nil {
		return nil, err
	}
	posts, _ = scraper.BatchFilter(posts, &filter)
	return posts, nil
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	posts, err := s.exportPosts(r)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts for export: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=facebook_posts_%s.csv", s.now().Format("2006-01-02")))
	if err := export.EncodeCSV(w, posts); err != nil {
		s.logger.Errorf("CSV export failed: %v", err)
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	posts, err := s.exportPosts(r)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts for export: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=facebook_posts_%s.json", s.now().Format("2006-01-02")))
	if err := export.EncodeJSON(w, posts); err != nil {
		s.logger.Errorf("JSON export failed: %v", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeError(w, "Monitoring is not enabled", http.StatusNotFound)
		return
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"health":  s.monitor.GetHealthStatus(),
			"metrics": s.monitor.GetMetrics(),
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode error response: %v", err)
	}
}

func intParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func pageOf(posts []types.Post, page, size int) []types.Post {
	start := (page - 1) * size
	if start >= len(posts) {
		return []types.Post{}
	}
	end := start + size
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end]
}
