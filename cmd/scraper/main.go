package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"facebook-group-scraper/internal/browser"
	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/database"
	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/procman"
	"facebook-group-scraper/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	DB *database.DB

	closeLog func()
}

func NewMain() *Main {
	return &Main{}
}

// Close releases the database and log file.
func (m *Main) Close() error {
	if m.closeLog != nil {
		m.closeLog()
	}
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("fb-scraper"),
		kong.Description("Collects posts from Facebook groups through a real browser session."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'fb-scraper --help' to see available commands")
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadOrDefault(cli.Config)
	if err != nil {
		return err
	}
	logger, closeLog, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	m.closeLog = closeLog
	defer m.Close()

	deps.Config = cfg
	deps.Logger = logger
	deps.Procs = procman.New(logger)

	command := kongCtx.Command()
	if needsDatabase(command, cli) {
		m.DB, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := m.DB.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		deps.DB = m.DB
	}

	switch command {
	case "scrape", "monitor", "stats":
		deps.Monitor = monitoring.NewMonitor(logger, cfg.Monitor)
	}

	deps.OpenBrowser = func(ctx context.Context) (dom.Session, error) {
		return browser.Open(ctx, cfg.Browser, logger)
	}

	return kongCtx.Run(deps)
}

func needsDatabase(command string, cli *CLI) bool {
	switch command {
	case "procs":
		return false
	case "replay <files>":
		return cli.Replay.Save
	default:
		return true
	}
}
