package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/availd/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		googleClientID     string
		googleClientSecret string
		googleRedirectURL  string
		tokenFile          string
		code               string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Obtain a Google Calendar credential",
		Long: `Run the Google OAuth flow without starting the server.

Without --code, prints the consent URL to open in a browser. After granting
access, re-run with --code to exchange the authorization code for a token
and persist it to the token file. The serve command picks the token up on
startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if googleClientID == "" {
				googleClientID = os.Getenv("GOOGLE_CLIENT_ID")
			}
			if googleClientSecret == "" {
				googleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
			}
			if !cmd.Flags().Changed("google-redirect-url") {
				if url := os.Getenv("GOOGLE_REDIRECT_URL"); url != "" {
					googleRedirectURL = url
				}
			}
			if tokenFile == "" {
				tokenFile = os.Getenv("TOKEN_FILE")
			}
			if googleClientID == "" || googleClientSecret == "" {
				return fmt.Errorf("google OAuth client credentials are required: set --google-client-id and --google-client-secret or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
			}

			tokenPath := tokenFile
			if tokenPath == "" {
				tokenPath = google.DefaultTokenPath()
			}
			store := google.NewFileTokenStore(tokenPath)

			oauthConf := google.Config{
				ClientID:     googleClientID,
				ClientSecret: googleClientSecret,
				RedirectURL:  googleRedirectURL,
			}
			auth := google.NewAuthManager(oauthConf.OAuth2(), store, slog.Default())

			if code == "" {
				fmt.Println("Open the following URL in a browser and grant calendar access:")
				fmt.Println()
				fmt.Println(auth.AuthURL())
				fmt.Println()
				fmt.Println("Then re-run with --code <authorization-code>.")
				return nil
			}

			if err := auth.Exchange(context.Background(), code); err != nil {
				return fmt.Errorf("failed to exchange authorization code: %w", err)
			}
			fmt.Printf("Token saved to %s\n", tokenPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&googleRedirectURL, "google-redirect-url", "http://localhost:8080/oauth2callback", "OAuth redirect URL registered with the Google client. Can also use GOOGLE_REDIRECT_URL env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path for the persisted OAuth token (default: OS cache dir). Can also use TOKEN_FILE env var.")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code returned by the consent flow")

	return cmd
}
