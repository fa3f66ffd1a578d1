package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"facebook-group-scraper/internal/auth"
	"facebook-group-scraper/internal/browser"
	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/human"
	"facebook-group-scraper/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", "configs/config.yaml", "Configuration file path")
		login      = flag.Bool("login", false, "Log in with the configured credentials when the cookies are not valid")
		howto      = flag.Bool("help-cookies", false, "Show instructions for exporting cookies from a browser")
	)
	flag.Parse()

	if *howto {
		fmt.Println(cookieInstructions)
		return
	}

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Logging.File = ""

	logger, closeLog, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Checking cookie file...")
	cookies, err := auth.ReadCookieFile(cfg.Facebook.Auth.CookiesFile)
	if err != nil {
		log.Fatalf("Failed to read cookies: %v", err)
	}
	if err := auth.ValidateCookies(cookies); err != nil {
		log.Fatalf("Cookie file is not usable: %v", err)
	}
	fmt.Printf("Found %d cookies\n", len(cookies))

	session, err := browser.Open(ctx, cfg.Browser, logger)
	if err != nil {
		logger.Fatalf("Failed to start browser: %v", err)
	}
	defer session.Close()

	manager := auth.NewManager(session, human.New(session, human.FromConfig(cfg.Human), logger), cfg.Facebook, logger)

	fmt.Println("Testing authentication...")
	if _, err := manager.LoadCookies(ctx); err != nil {
		logger.Fatalf("Failed to load cookies: %v", err)
	}
	ok, err := manager.CheckSession(ctx)
	if err != nil {
		logger.Fatalf("Session check failed: %v", err)
	}

	if !ok && *login {
		fmt.Println("Cookies are not logged in, trying the login form...")
		if err := manager.Login(ctx, cfg.Facebook.Email, cfg.Facebook.Password); err != nil {
			logger.Fatalf("Login failed: %v", err)
		}
		if n, err := manager.SaveCookies(ctx); err == nil {
			fmt.Printf("Saved %d cookies to %s\n", n, cfg.Facebook.Auth.CookiesFile)
		}
		ok = true
	}

	if !ok {
		fmt.Println("Cookies are expired or invalid. Export fresh cookies or run with -login.")
		session.Close()
		os.Exit(1)
	}
	fmt.Println("Cookies are valid and authentication successful!")
}

const cookieInstructions = `To export cookies from your browser:

1. Open Facebook in your browser and log in
2. Open Developer Tools (F12)
3. Go to the Application/Storage tab
4. Click on Cookies -> https://www.facebook.com
5. Copy at least these cookies:
   - c_user: your numeric user id
   - xs: session token
   - datr: device token
6. Save them to configs/cookies.json as a JSON array of
   {"name", "value", "domain", "path", "secure", "httpOnly", "expires"} objects`
