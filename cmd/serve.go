package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/availd/internal/availability"
	"github.com/teemow/availd/internal/calendar"
	"github.com/teemow/availd/internal/google"
	"github.com/teemow/availd/internal/instrumentation"
	"github.com/teemow/availd/internal/policy"
	"github.com/teemow/availd/internal/server"
	"github.com/teemow/availd/internal/twilio"
)

// ServeConfig holds the resolved configuration for the serve command after
// flags and environment variables have been merged.
type ServeConfig struct {
	HTTPAddr string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	CalendarID         string
	TokenFile          string

	AllowedNumbers []string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	AtHome bool

	Metrics MetricsConfig
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		httpAddr           string
		googleClientID     string
		googleClientSecret string
		googleRedirectURL  string
		calendarID         string
		tokenFile          string
		allowFrom          string
		twilioAccountSID   string
		twilioAuthToken    string
		twilioFromNumber   string
		atHome             bool
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the availability responder",
		Long: `Start the HTTP server that receives the Twilio SMS webhook and answers
availability queries.

Google Configuration:
  OAuth client credentials (required):
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars

  A calendar credential is obtained once via the browser flow at /authorize
  (or the auth subcommand) and persisted to the token file. Refreshed
  tokens are persisted automatically.

Twilio Configuration (optional):
  --twilio-account-sid, --twilio-auth-token and --twilio-from-number flags
  OR TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER env vars
  Without these, webhooks are still accepted but replies cannot be sent.

Access Control:
  --allow-from lists the phone numbers permitted to query availability
  (comma-separated, E.164). Can also use ALLOWED_NUMBERS env var.
  Messages from any other number are acknowledged and ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ServeConfig{
				HTTPAddr:           httpAddr,
				GoogleClientID:     googleClientID,
				GoogleClientSecret: googleClientSecret,
				GoogleRedirectURL:  googleRedirectURL,
				CalendarID:         calendarID,
				TokenFile:          tokenFile,
				AllowedNumbers:     parseCommaSeparatedList(allowFrom),
				TwilioAccountSID:   twilioAccountSID,
				TwilioAuthToken:    twilioAuthToken,
				TwilioFromNumber:   twilioFromNumber,
				AtHome:             atHome,
				Metrics: MetricsConfig{
					Enabled: metricsEnabled,
					Addr:    metricsAddr,
				},
			}

			// Load settings from environment variables if not set via flags
			loadServeEnvVars(cmd, &cfg)

			if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
				return fmt.Errorf("google OAuth client credentials are required: set --google-client-id and --google-client-secret or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
			}

			return runServe(cfg, debugMode)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address for the webhook and OAuth endpoints")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&googleRedirectURL, "google-redirect-url", "http://localhost:8080/oauth2callback", "OAuth redirect URL registered with the Google client. Can also use GOOGLE_REDIRECT_URL env var.")
	cmd.Flags().StringVar(&calendarID, "calendar-id", "primary", "Calendar to consult for availability. Can also use CALENDAR_ID env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path for the persisted OAuth token (default: OS cache dir). Can also use TOKEN_FILE env var.")
	cmd.Flags().StringVar(&allowFrom, "allow-from", "", "Comma-separated phone numbers allowed to query availability. Can also use ALLOWED_NUMBERS env var.")
	cmd.Flags().StringVar(&twilioAccountSID, "twilio-account-sid", "", "Twilio account SID for outbound SMS. Can also use TWILIO_ACCOUNT_SID env var.")
	cmd.Flags().StringVar(&twilioAuthToken, "twilio-auth-token", "", "Twilio auth token for outbound SMS. Can also use TWILIO_AUTH_TOKEN env var.")
	cmd.Flags().StringVar(&twilioFromNumber, "twilio-from-number", "", "Twilio phone number replies are sent from. Can also use TWILIO_FROM_NUMBER env var.")
	cmd.Flags().BoolVar(&atHome, "at-home", false, "Report Available only when at home. Can also use AT_HOME env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars loads serve configuration from environment variables.
// Environment variables only override flag values when the flag was not
// explicitly set.
func loadServeEnvVars(cmd *cobra.Command, cfg *ServeConfig) {
	if cfg.GoogleClientID == "" {
		cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if cfg.GoogleClientSecret == "" {
		cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if !cmd.Flags().Changed("google-redirect-url") {
		if url := os.Getenv("GOOGLE_REDIRECT_URL"); url != "" {
			cfg.GoogleRedirectURL = url
		}
	}
	if !cmd.Flags().Changed("calendar-id") {
		if id := os.Getenv("CALENDAR_ID"); id != "" {
			cfg.CalendarID = id
		}
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = os.Getenv("TOKEN_FILE")
	}
	if len(cfg.AllowedNumbers) == 0 {
		if numbers := os.Getenv("ALLOWED_NUMBERS"); numbers != "" {
			cfg.AllowedNumbers = parseCommaSeparatedList(numbers)
		}
	}
	if cfg.TwilioAccountSID == "" {
		cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.TwilioAuthToken == "" {
		cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.TwilioFromNumber == "" {
		cfg.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if !cmd.Flags().Changed("at-home") {
		if envVal := os.Getenv("AT_HOME"); envVal != "" {
			if parsed, err := strconv.ParseBool(envVal); err == nil {
				cfg.AtHome = parsed
			} else {
				log.Printf("Warning: invalid AT_HOME value %q (expected true/false), using default: false", envVal)
			}
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			cfg.Metrics.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.Metrics.Addr = addr
		}
	}
}

func runServe(cfg ServeConfig, debugMode bool) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during instrumentation shutdown: %v", err)
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
	}()

	// Token store and OAuth credential lifecycle
	tokenPath := cfg.TokenFile
	if tokenPath == "" {
		tokenPath = google.DefaultTokenPath()
	}
	store := google.NewFileTokenStore(tokenPath)

	oauthConf := google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}
	auth := google.NewAuthManager(oauthConf.OAuth2(), store, logger)
	auth.Initialize()
	if !auth.Authorized() {
		logger.Warn("no stored Google credential, calendar queries report busy until authorized",
			"authorize_url", fmt.Sprintf("http://localhost%s/authorize", portSuffix(cfg.HTTPAddr)))
	}

	// Calendar availability
	resolver := calendar.NewResolver(auth, cfg.CalendarID, logger, provider.Metrics())

	// Sender allow list
	allowList := policy.NewAllowList(cfg.AllowedNumbers)
	if allowList.Size() == 0 {
		logger.Warn("allow list is empty, every inbound message will be rejected")
	}

	// Outbound SMS
	sender, err := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	if err != nil {
		return fmt.Errorf("invalid Twilio configuration: %w", err)
	}
	if !sender.Configured() {
		logger.Warn("Twilio credentials not configured, replies will not be sent")
	}

	orch := availability.NewOrchestrator(allowList, resolver, sender, cfg.AtHome, logger, provider.Metrics())

	srv := server.New(server.Config{
		Addr:         cfg.HTTPAddr,
		Orchestrator: orch,
		Auth:         auth,
		Logger:       logger,
		Metrics:      provider.Metrics(),
	})

	log.Printf("Starting availd on %s", cfg.HTTPAddr)
	log.Printf("  Webhook endpoint: /sms")
	log.Printf("  OAuth endpoints: /authorize, /oauth2callback")
	log.Printf("  Health endpoints: /healthz, /readyz")
	if metricsServer != nil {
		log.Printf("  Metrics endpoint: %s%s", metricsServer.Addr(), metricsServer.Path())
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown signal received, stopping HTTP server...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	log.Println("HTTP server gracefully stopped")
	return nil
}

// portSuffix extracts the ":port" part of an address for printing a local
// URL. An address that already names a host is returned unchanged.
func portSuffix(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return addr
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
