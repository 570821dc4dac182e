package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpfieber/sleepsync/internal/source/googlefit"
)

func init() {
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to the Google Fit API",
	Long: `Prints the browser authorization URL, then waits for the redirect on
the local callback receiver. The receiver accepts exactly one code, checks
it against the issued state, and times out after five minutes.`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.GoogleFit.ClientID == "" || cfg.GoogleFit.ClientSecret == "" {
		return fmt.Errorf("googlefit.client_id and googlefit.client_secret must be configured first")
	}

	port := cfg.GoogleFit.CallbackPort
	url, state := googlefit.AuthURL(cfg.GoogleFit.ClientID, port)
	fmt.Fprintf(os.Stdout, "Open this URL in your browser to authorize:\n\n  %s\n\nWaiting for the authorization callback...\n", url)

	code, err := googlefit.WaitForCallback(cmd.Context(), port, state)
	if err != nil {
		return err
	}
	if code == "" {
		return fmt.Errorf("no authorization callback received within the timeout")
	}

	tokens := newTokenClient(cfg)
	if _, err := tokens.Exchange(cmd.Context(), code, googlefit.RedirectURI(port)); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Authorization complete; token saved.")
	return nil
}
