package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/XaviFortes/tesla-tracker/internal/tesla"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Generate a Tesla refresh token via the browser login flow",
	Long: "Opens the Tesla SSO login in your browser using PKCE. After " +
		"logging in you land on a blank 'Page Not Found' page; paste its " +
		"URL back here to receive a refresh token for the bot's /login " +
		"command.",
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	challenge, err := tesla.NewPKCEChallenge()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "1. Open this URL in your browser and log in:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "   "+tesla.AuthorizeURL(challenge.Challenge))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "2. After login you land on a 'Page Not Found' page.")
	fmt.Fprint(out, "   Paste its full URL here: ")

	scanner := bufio.NewScanner(os.Stdin)
	// Redirect URLs exceed bufio's default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading redirect URL: %w", err)
		}
		return fmt.Errorf("no redirect URL provided")
	}

	code, err := tesla.CodeFromRedirect(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pair, err := tesla.NewTokenExchanger().ExchangeCode(ctx, code, challenge.Verifier)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Refresh token (send it to the bot with /login <token>):")
	fmt.Fprintln(out)
	fmt.Fprintln(out, pair.RefreshToken)
	return nil
}
