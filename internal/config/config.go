package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"facebook-group-scraper/pkg/types"
)

type Config struct {
	Facebook FacebookConfig `yaml:"facebook"`
	Browser  BrowserConfig  `yaml:"browser"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Human    HumanConfig    `yaml:"human"`
	Database DatabaseConfig `yaml:"database"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	API      APIConfig      `yaml:"api"`
}

type FacebookConfig struct {
	BaseURL   string          `yaml:"base_url"`
	GroupURL  string          `yaml:"group_url"`
	Email     string          `yaml:"email"`
	Password  string          `yaml:"password"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

type AuthConfig struct {
	// Method is one of "cookies", "login" or "none".
	Method      string `yaml:"method"`
	CookiesFile string `yaml:"cookies_file"`
	SaveCookies bool   `yaml:"save_cookies"`
}

type RateLimitConfig struct {
	RequestsPerMinute    int `yaml:"requests_per_minute"`
	DelayBetweenRequests int `yaml:"delay_between_requests"`
}

type BrowserConfig struct {
	// Driver is one of "chromedp", "rod" or "selenium".
	Driver           string `yaml:"driver"`
	Headless         bool   `yaml:"headless"`
	ChromePath       string `yaml:"chrome_path"`
	DriverPath       string `yaml:"driver_path"`
	SeleniumPort     int    `yaml:"selenium_port"`
	UserDataDir      string `yaml:"user_data_dir"`
	UserAgent        string `yaml:"user_agent"`
	WindowWidth      int    `yaml:"window_width"`
	WindowHeight     int    `yaml:"window_height"`
	Timeout          int    `yaml:"timeout"`
	Stealth          bool   `yaml:"stealth"`
	CleanupProcesses bool   `yaml:"cleanup_processes"`
}

type ScraperConfig struct {
	MaxPosts             int              `yaml:"max_posts"`
	MaxScrolls           int              `yaml:"max_scrolls"`
	ValidatePosts        bool             `yaml:"validate_posts"`
	Mode                 string           `yaml:"mode"`
	ScreenshotDir        string           `yaml:"screenshot_dir"`
	ExpandContent        bool             `yaml:"expand_content"`
	SelectorsFile        string           `yaml:"selectors_file"`
	ScrollMin            int              `yaml:"scroll_min"`
	ScrollMax            int              `yaml:"scroll_max"`
	BacktrackProbability float64          `yaml:"backtrack_probability"`
	DebugHTMLDir         string           `yaml:"debug_html_dir"`
	Filter               types.PostFilter `yaml:"filter"`
}

type HumanConfig struct {
	Enabled  bool `yaml:"enabled"`
	FastMode bool `yaml:"fast_mode"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MonitorConfig struct {
	IntervalMinutes      int     `yaml:"interval_minutes"`
	MetricsFile          string  `yaml:"metrics_file"`
	MaxFailureRate       float64 `yaml:"max_failure_rate"`
	MinPostsPerRun       int     `yaml:"min_posts_per_run"`
	MaxConsecutiveErrors int     `yaml:"max_consecutive_errors"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type Group struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// GroupURL returns the explicit url or builds one from the id.
func (g Group) GroupURL() string {
	if g.URL != "" {
		return g.URL
	}
	return "https://www.facebook.com/groups/" + g.ID
}

// Default returns a configuration that runs without a config file.
func Default() *Config {
	return &Config{
		Facebook: FacebookConfig{
			BaseURL: "https://www.facebook.com",
			RateLimit: RateLimitConfig{
				RequestsPerMinute:    2,
				DelayBetweenRequests: 30,
			},
			Auth: AuthConfig{
				Method:      "cookies",
				CookiesFile: "configs/cookies.json",
				SaveCookies: true,
			},
		},
		Browser: BrowserConfig{
			Driver:           "chromedp",
			Headless:         false,
			SeleniumPort:     9515,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:      1366,
			WindowHeight:     768,
			Timeout:          30,
			Stealth:          true,
			CleanupProcesses: true,
		},
		Scraper: ScraperConfig{
			MaxPosts:             50,
			MaxScrolls:           20,
			ValidatePosts:        true,
			Mode:                 "data",
			ScreenshotDir:        "screenshots",
			ExpandContent:        true,
			ScrollMin:            400,
			ScrollMax:            800,
			BacktrackProbability: 0.15,
		},
		Human: HumanConfig{
			Enabled: true,
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Path:    "data/facebook_posts.db",
			Host:    "localhost",
			Port:    5432,
			Name:    "facebook_scraper",
			SSLMode: "disable",
		},
		Export: ExportConfig{
			Dir:    "data",
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Monitor: MonitorConfig{
			IntervalMinutes:      60,
			MetricsFile:          "logs/metrics.json",
			MaxFailureRate:       0.5,
			MinPostsPerRun:       1,
			MaxConsecutiveErrors: 3,
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}

// Load reads configFile over the defaults and applies environment overrides.
// A missing .env file is not an error.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configFile)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(configFile string) (*Config, error) {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		_ = godotenv.Load()
		config := Default()
		config.ApplyEnv(os.LookupEnv)
		return config, nil
	}
	return Load(configFile)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_PATH", &c.Database.Path)
	setString("DB_HOST", &c.Database.Host)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Name)
	if v, ok := lookup("DB_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}

	setString("FACEBOOK_EMAIL", &c.Facebook.Email)
	setString("FACEBOOK_PASSWORD", &c.Facebook.Password)
	setString("FACEBOOK_GROUP_URL", &c.Facebook.GroupURL)

	setString("BROWSER_DRIVER", &c.Browser.Driver)
	setString("CHROME_DRIVER_PATH", &c.Browser.DriverPath)
	setString("CHROME_BINARY_PATH", &c.Browser.ChromePath)
	if v, ok := lookup("CHROME_HEADLESS"); ok {
		if headless, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = headless
		}
	}

	setString("LOG_LEVEL", &c.Logging.Level)
}

func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case "chromedp", "rod", "selenium":
	default:
		return fmt.Errorf("unsupported browser driver: %q", c.Browser.Driver)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	switch c.Scraper.Mode {
	case "data", "screenshot":
	default:
		return fmt.Errorf("unsupported scraper mode: %q", c.Scraper.Mode)
	}
	switch strings.ToLower(c.Export.Format) {
	case "json", "csv", "both":
	default:
		return fmt.Errorf("unsupported export format: %q", c.Export.Format)
	}
	if c.Scraper.ScrollMin <= 0 || c.Scraper.ScrollMax < c.Scraper.ScrollMin {
		return fmt.Errorf("invalid scroll range: %d-%d", c.Scraper.ScrollMin, c.Scraper.ScrollMax)
	}
	if c.Scraper.BacktrackProbability < 0 || c.Scraper.BacktrackProbability > 1 {
		return fmt.Errorf("backtrack_probability must be between 0 and 1")
	}
	return nil
}

func LoadGroups(groupsFile string) ([]Group, error) {
	if _, err := os.Stat(groupsFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("groups file not found: %s", groupsFile)
	}

	data, err := os.ReadFile(groupsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read groups file: %w", err)
	}

	var groups struct {
		Groups []Group `yaml:"groups"`
	}

	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse groups file: %w", err)
	}

	for i, g := range groups.Groups {
		if g.ID == "" && g.URL == "" {
			return nil, fmt.Errorf("group %d has neither id nor url", i)
		}
	}

	return groups.Groups, nil
}
