package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/config"
	"github.com/Veraticus/tachyon/internal/gcp"
	"github.com/Veraticus/tachyon/internal/invoice"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func invoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Create, inspect, and serve invoices",
	}
	cmd.PersistentFlags().String("dir", "", "invoice directory")
	cmd.PersistentFlags().Bool("wallet", false, "issue a Google Wallet pass for each new invoice")
	_ = viper.BindPFlag("invoice.dir", cmd.PersistentFlags().Lookup("dir"))
	_ = viper.BindPFlag("wallet.enabled", cmd.PersistentFlags().Lookup("wallet"))

	cmd.AddCommand(invoiceServeCmd())
	cmd.AddCommand(invoiceCreateCmd())
	cmd.AddCommand(invoiceShowCmd())
	cmd.AddCommand(invoiceListCmd())
	cmd.AddCommand(invoiceSettingsCmd())
	return cmd
}

// newPassIssuer builds the wallet issuer, or returns a nil PassIssuer when
// wallet passes are disabled.
func newPassIssuer(ctx context.Context, c *config.Config, m *metrics.Metrics) (invoice.PassIssuer, error) {
	if !c.Wallet.Enabled {
		return nil, nil
	}
	return newWalletIssuer(ctx, c, m)
}

func newWalletIssuer(ctx context.Context, c *config.Config, m *metrics.Metrics) (*wallet.Issuer, error) {
	if err := c.RequireWallet(); err != nil {
		return nil, err
	}

	account, err := gcp.ServiceAccount(c.Google.CredentialsFile, wallet.Scope)
	if err != nil {
		return nil, err
	}
	signer, err := wallet.NewServiceAccountSigner(account)
	if err != nil {
		return nil, err
	}
	api, err := wallet.NewRESTAPI(ctx, c.Google.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return wallet.NewIssuer(api, signer, c.Wallet.IssuerID, c.Wallet.ClassSuffix, logger, m)
}

func newInvoiceService(ctx context.Context, c *config.Config, m *metrics.Metrics) (*invoice.Service, error) {
	store, err := invoice.NewFileStore(c.Invoice.Dir)
	if err != nil {
		return nil, err
	}
	passes, err := newPassIssuer(ctx, c, m)
	if err != nil {
		return nil, err
	}
	geo := model.GeoCoordinates{Latitude: c.Invoice.Latitude, Longitude: c.Invoice.Longitude}
	return invoice.NewService(store, passes, geo, logger, m), nil
}

func invoiceServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the invoice HTTP server",
		Long: `Serve the invoice API:

  GET  /healthz          liveness
  GET  /metrics          Prometheus metrics
  GET  /settings         store settings
  POST /settings         save store settings (store_name, store_address, issuer_id)
  POST /invoices         create an invoice (item_name, item_cost, gst, issuer_name)
  GET  /invoices         list invoice ids
  GET  /invoices/{id}    fetch an invoice`,
		RunE: runInvoiceServe,
	}
	cmd.Flags().String("addr", "", "listen address")
	_ = viper.BindPFlag("invoice.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runInvoiceServe(cmd *cobra.Command, _ []string) error {
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Invoice server", "")

	m, reg := newMetrics()
	svc, err := newInvoiceService(ctx, cfg, m)
	if err != nil {
		return err
	}

	handler := invoice.NewHandler(svc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
	srv := &http.Server{
		Addr:              cfg.Invoice.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		common.LogInfo("invoice server listening", common.Fields{"addr": cfg.Invoice.Addr, "dir": cfg.Invoice.Dir})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("invoice server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("invoice server stopped")
		return nil
	})
	return g.Wait()
}

func invoiceCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice from the command line",
		Long: `Create an invoice. Items are given as name=cost pairs.

Examples:
  tachyon invoice create --issuer "Asha" --gst 9 --item Rice=100 --item Dal=50
  tachyon invoice create --issuer "Asha" --item "Dolo 650=32.5" --wallet`,
		RunE: runInvoiceCreate,
	}
	cmd.Flags().String("issuer", "", "name of the person issuing the invoice")
	cmd.Flags().StringArray("item", nil, "item as name=cost (repeatable)")
	cmd.Flags().Float64("gst", 0, "GST percent applied as both CGST and SGST")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

// parseItems converts name=cost flags into invoice items.
func parseItems(raw []string) ([]model.InvoiceItem, error) {
	items := make([]model.InvoiceItem, 0, len(raw))
	for _, entry := range raw {
		i := strings.LastIndex(entry, "=")
		if i <= 0 {
			return nil, fmt.Errorf("%w: item %q must be name=cost", invoice.ErrInvalidInvoice, entry)
		}
		name := strings.TrimSpace(entry[:i])
		cost, err := strconv.ParseFloat(strings.TrimSpace(entry[i+1:]), 64)
		if name == "" || err != nil {
			return nil, fmt.Errorf("%w: item %q must be name=cost", invoice.ErrInvalidInvoice, entry)
		}
		items = append(items, model.InvoiceItem{Name: name, Cost: cost})
	}
	return items, nil
}

func runInvoiceCreate(cmd *cobra.Command, _ []string) error {
	issuer, _ := cmd.Flags().GetString("issuer")
	rawItems, _ := cmd.Flags().GetStringArray("item")
	gst, _ := cmd.Flags().GetFloat64("gst")
	asJSON, _ := cmd.Flags().GetBool("json")

	items, err := parseItems(rawItems)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m, _ := newMetrics()
	svc, err := newInvoiceService(ctx, cfg, m)
	if err != nil {
		return err
	}

	result, err := svc.Create(ctx, invoice.CreateRequest{IssuerName: issuer, Items: items, GST: gst})
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd, result)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderInvoice(result.Invoice, result.Pass, result.PassErr))
	return err
}

func invoiceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := invoice.NewFileStore(cfg.Invoice.Dir)
			if err != nil {
				return err
			}
			inv, err := store.GetInvoice(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, inv)
		},
	}
}

func invoiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved invoice ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := invoice.NewFileStore(cfg.Invoice.Dir)
			if err != nil {
				return err
			}
			ids, err := store.ListInvoiceIDs()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No invoices in "+store.Dir()))
				return err
			}
			for _, id := range ids {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func invoiceSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update the store settings printed on invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := invoice.NewFileStore(cfg.Invoice.Dir)
			if err != nil {
				return err
			}
			settings, err := store.LoadSettings()
			if err != nil {
				return err
			}

			changed := false
			for flag, field := range map[string]*string{
				"store-name":    &settings.StoreName,
				"store-address": &settings.StoreAddress,
				"issuer-id":     &settings.IssuerID,
			} {
				if cmd.Flags().Changed(flag) {
					*field, _ = cmd.Flags().GetString(flag)
					changed = true
				}
			}
			if changed {
				if err := store.SaveSettings(settings); err != nil {
					return err
				}
				logger.Info("saved store settings", "dir", store.Dir())
			}
			return writeJSON(cmd, settings)
		},
	}
	cmd.Flags().String("store-name", "", "store name")
	cmd.Flags().String("store-address", "", "store address")
	cmd.Flags().String("issuer-id", "", "issuer id printed on invoices")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
