package cli

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/louise36-g/mysticoracle/internal/api"
	"github.com/louise36-g/mysticoracle/internal/app/capture"
	"github.com/louise36-g/mysticoracle/internal/app/ledger"
	"github.com/louise36-g/mysticoracle/internal/app/webhook"
	"github.com/louise36-g/mysticoracle/internal/daemon"
	"github.com/louise36-g/mysticoracle/internal/gateway"
	"github.com/louise36-g/mysticoracle/internal/infra/eventlog"
	"github.com/louise36-g/mysticoracle/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the payment API server",
	Long:  `Start the HTTP server: webhook ingestion, capture, checkout, balances.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Database.Dir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := sqlite.Open(cfg.Database.Dir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var archive *eventlog.Log
	if cfg.EventLog.Enabled {
		archive, err = eventlog.Open(cfg.EventLog.Path)
		if err != nil {
			return fmt.Errorf("open webhook archive: %w", err)
		}
		defer archive.Close()
	}

	registry := buildRegistry(cfg)
	for _, p := range registry.Providers() {
		gw, _ := registry.Resolve(string(p))
		if !gw.Configured() {
			log.Printf("[serve] provider %s registered but not configured", p)
		}
	}

	led := ledger.New(db, db)
	captureUC := capture.New(registry, db, led)
	webhookUC := webhook.New(registry, db, led, archive)

	server := api.NewServer(registry, led, captureUC, webhookUC, db)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	log.Printf("[serve] listening on %s", cfg.Addr())
	return http.ListenAndServe(cfg.Addr(), server.Handler())
}

// buildRegistry registers a gateway per provider section present in
// the config.
func buildRegistry(cfg daemon.Config) *gateway.Registry {
	registry := gateway.NewRegistry()
	registry.Register(gateway.NewStripe(gateway.StripeConfig{
		SecretKey:     cfg.Providers.Stripe.SecretKey,
		WebhookSecret: cfg.Providers.Stripe.WebhookSecret,
		BaseURL:       cfg.Providers.Stripe.BaseURL,
	}))
	registry.Register(gateway.NewPayPal(gateway.PayPalConfig{
		ClientID:      cfg.Providers.PayPal.ClientID,
		Secret:        cfg.Providers.PayPal.Secret,
		WebhookSecret: cfg.Providers.PayPal.WebhookSecret,
		BaseURL:       cfg.Providers.PayPal.BaseURL,
	}))
	return registry
}
