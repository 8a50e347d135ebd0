package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/schoolfees/internal/auth"
	"github.com/mmynk/schoolfees/internal/client"
	"github.com/mmynk/schoolfees/internal/config"
	"github.com/mmynk/schoolfees/pkg/logging"
)

var version = "0.1.0"

// app is the state shared by subcommands once the root has loaded config.
type app struct {
	envFile string
	apiURL  string
	token   string

	cfg config.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "feesctl",
		Short: "feesctl - fee desk for the school fee server",
		Long: `feesctl lists student fee ledgers, records tuition and transport
payments and prints receipts. It talks to a running fee server; settings
come from the environment or a .env file (API_URL, API_TOKEN, CURRENCY).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if a.envFile != "" {
				files = append(files, a.envFile)
			}
			cfg, err := config.LoadClient(files...)
			if err != nil {
				return err
			}
			if a.apiURL != "" {
				cfg.APIURL = a.apiURL
			}
			if a.token != "" {
				cfg.APIToken = a.token
			}
			a.cfg = cfg
			logging.Configure(cfg.LogLevel, "text")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load settings from this file instead of .env")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "fee server URL (overrides API_URL)")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token (overrides API_TOKEN)")

	root.AddCommand(
		newLedgerCmd(a),
		newPayCmd(a),
		newCheckCmd(a),
		newReceiptCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.APIURL, a.cfg.APIToken, a.httpClient())
}

// desk builds a desk for the session carried by the configured token.
func (a *app) desk() (*client.Desk, error) {
	if a.cfg.APIToken == "" {
		return nil, errors.New("no token: set API_TOKEN or pass --token")
	}
	session, err := auth.SessionFromToken(a.cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("unusable token: %w", err)
	}
	return client.NewDesk(a.client(), session), nil
}
