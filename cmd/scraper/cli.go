package main

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/database"
	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/procman"
)

// Dependencies holds everything a command needs. Main fills it in; tests
// build it by hand.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	Logger  *logrus.Logger
	DB      *database.DB
	Monitor *monitoring.Monitor
	Procs   *procman.Manager
	Now     func() time.Time

	// OpenBrowser starts a browser session for scraping.
	OpenBrowser func(ctx context.Context) (dom.Session, error)
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config string `short:"c" default:"configs/config.yaml" help:"Configuration file path"`

	Scrape  ScrapeCmd  `cmd:"" help:"Scrape configured groups once"`
	Monitor MonitorCmd `cmd:"" help:"Scrape configured groups on a schedule"`
	Replay  ReplayCmd  `cmd:"" help:"Run extraction over saved HTML pages"`
	Export  ExportCmd  `cmd:"" help:"Export stored posts to JSON or CSV"`
	Stats   StatsCmd   `cmd:"" help:"Show stored post statistics"`
	Procs   ProcsCmd   `cmd:"" help:"List or terminate stray browser processes"`
}

// GroupFlags selects which groups a scraping command visits.
type GroupFlags struct {
	Group      []string `short:"g" help:"Group URL or id (repeatable)"`
	GroupsFile string   `default:"configs/groups.yaml" help:"Groups file used when no --group is given"`
	Target     int      `short:"n" help:"Posts to collect per group (default from config)"`
	MaxScrolls int      `help:"Scroll budget per group (default from config)"`
}

type ScrapeCmd struct {
	GroupFlags
	NoExport bool `help:"Do not write export files"`
}

type MonitorCmd struct {
	GroupFlags
	Interval int  `help:"Minutes between runs (default from config)"`
	API      bool `help:"Serve the REST API and dashboard while monitoring"`
}

type ReplayCmd struct {
	Files      []string `arg:"" type:"existingfile" help:"Saved HTML pages, in scroll order"`
	URL        string   `help:"URL the pages were captured from"`
	Target     int      `short:"n" help:"Posts to collect (default from config)"`
	MaxScrolls int      `help:"Scroll budget (default: one per page)"`
	Output     string   `short:"o" help:"Write records to this JSON file instead of the export directory"`
	Save       bool     `help:"Store records in the database"`
}

type ExportCmd struct {
	Format   string `short:"f" help:"json, csv or both (default from config)"`
	Dir      string `short:"o" help:"Output directory (default from config)"`
	Group    string `help:"Only posts from this group"`
	MinLikes int    `help:"Only posts with at least this many likes"`
	Limit    int    `help:"Maximum posts to export"`
	DaysBack int    `help:"Only posts scraped within this many days"`
}

type StatsCmd struct {
	Threshold float64 `default:"10" help:"Engagement score counted as high engagement"`
	Authors   int     `default:"5" help:"Top authors to list"`
	Report    bool    `help:"Include the monitoring report"`
}

type ProcsCmd struct {
	Kill bool `help:"Terminate stray automation and driver processes"`
}
