package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"

	"pulse/internal/auth"
	"pulse/internal/config"
	"pulse/internal/healthapi"
	"pulse/internal/render"
	"pulse/internal/report"
	"pulse/internal/service"
	"pulse/internal/store"
)

const appVersion = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	jsonOut := flag.Bool("json", false, "print the full report as JSON")
	summaryOut := flag.Bool("summary", false, "print the terminal summary")
	resetAnchors := flag.Bool("reset-anchors", false, "clear sync anchors to force a full re-fetch")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println("You need to add the OAuth credentials of your health bridge.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	// Open database
	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if *resetAnchors {
		if err := db.ResetAnchors(); err != nil {
			return fmt.Errorf("resetting anchors: %w", err)
		}
		fmt.Println("Sync anchors cleared. The next run re-fetches the full lookback.")
	}

	// Check for existing auth
	storedAuth, err := db.GetAuth()
	if errors.Is(err, store.ErrNoAuth) {
		fmt.Println("No authentication found. Starting OAuth flow...")
		if err := authenticate(ctx, db, cfg); err != nil {
			return fmt.Errorf("authentication: %w", err)
		}
		storedAuth, err = db.GetAuth()
		if err != nil {
			return fmt.Errorf("fetching auth after login: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("checking auth: %w", err)
	}

	// Create token source for API calls (with auto-refresh)
	oauthCfg := auth.NewOAuthConfig(auth.Config{
		BaseURL:      cfg.Bridge.BaseURL,
		ClientID:     cfg.Bridge.ClientID,
		ClientSecret: cfg.Bridge.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.CallbackPort),
	})

	token := &oauth2.Token{
		AccessToken:  storedAuth.AccessToken,
		RefreshToken: storedAuth.RefreshToken,
		Expiry:       storedAuth.ExpiresAt,
	}

	tokenSource := auth.NewTokenSource(oauthCfg, token, func(newToken *oauth2.Token) error {
		return db.UpdateTokens(newToken.AccessToken, newToken.RefreshToken, newToken.Expiry)
	})

	// Test token is valid by getting a fresh one
	if _, err := tokenSource.Token(); err != nil {
		fmt.Println("Stored token is invalid or expired. Re-authenticating...")
		if err := authenticate(ctx, db, cfg); err != nil {
			return fmt.Errorf("re-authentication: %w", err)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving timezone: %w", err)
	}

	client := healthapi.NewClient(cfg.Bridge.BaseURL, tokenSource)
	coordinator := service.New(client, db, logger, loc, appVersion)

	rep, err := coordinator.Refresh(ctx)
	if err != nil {
		// Fall back to the last persisted report so the user still sees
		// something, clearly flagged as stale.
		logger.Warn("refresh failed, falling back to stored report", zap.Error(err))
		js, loadErr := db.GetLastReportJSON()
		if errors.Is(loadErr, store.ErrNoReport) {
			return fmt.Errorf("refresh failed and no stored report exists: %w", err)
		}
		if loadErr != nil {
			return fmt.Errorf("loading stored report: %w", loadErr)
		}
		rep, loadErr = report.Unmarshal(js)
		if loadErr != nil {
			return fmt.Errorf("parsing stored report: %w", loadErr)
		}
		rep.Flags.AggregationError = true
	}

	return output(db, cfg, rep, *jsonOut, *summaryOut)
}

// output prints the report in the requested mode. Flags beat the configured
// default; --json wins when both are given.
func output(db *store.Store, cfg *config.Config, rep *report.Report, jsonOut, summaryOut bool) error {
	mode := cfg.Display.Output
	if summaryOut {
		mode = "summary"
	}
	if jsonOut {
		mode = "json"
	}

	if mode == "json" {
		js, err := rep.Marshal()
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Println(js)
		return nil
	}

	obs, err := db.GetObservations(report.SignalHRV, 30)
	if err != nil {
		return fmt.Errorf("loading trend history: %w", err)
	}
	history := make([]float64, 0, len(obs))
	for _, o := range obs {
		history = append(history, o.Value)
	}

	fmt.Println(render.Summary(rep, history))
	return nil
}

// newLogger builds the process logger. Console output stays on stderr so the
// report itself is the only thing on stdout.
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

func authenticate(ctx context.Context, db *store.Store, cfg *config.Config) error {
	oauthCfg := auth.NewOAuthConfig(auth.Config{
		BaseURL:      cfg.Bridge.BaseURL,
		ClientID:     cfg.Bridge.ClientID,
		ClientSecret: cfg.Bridge.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.CallbackPort),
	})

	result, err := auth.Authenticate(ctx, oauthCfg)
	if err != nil {
		return err
	}

	storedAuth := &store.Auth{
		AccessToken:  result.Token.AccessToken,
		RefreshToken: result.Token.RefreshToken,
		ExpiresAt:    result.Token.Expiry,
	}

	if err := db.SaveAuth(storedAuth); err != nil {
		return fmt.Errorf("saving auth: %w", err)
	}

	fmt.Println()
	fmt.Println("Successfully authenticated with the health bridge.")
	return nil
}
