package main

import (
	"fmt"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/invoice"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/wallet"
	"github.com/spf13/cobra"
)

func passCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Manage Google Wallet receipt passes",
	}
	cmd.AddCommand(passIssueCmd())
	cmd.AddCommand(passClassCmd())
	return cmd
}

func passClassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "class",
		Short: "Create the receipt pass class if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _ := newMetrics()
			issuer, err := newWalletIssuer(cmd.Context(), cfg, m)
			if err != nil {
				return err
			}
			classID, err := issuer.EnsureClass(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Receipt class ready: "+classID))
			return err
		},
	}
}

func passIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a receipt pass and print its save link",
		Long: `Issue a receipt pass either for a saved invoice or for receipt details
given on the command line.

Examples:
  tachyon pass issue --invoice 5f0c6d3e-8f4f-4c55-9a3c-2b1d5a7f9e10
  tachyon pass issue --vendor "Corner Store" --amount 177 --items "Rice Dal"`,
		Args: cobra.NoArgs,
		RunE: runPassIssue,
	}
	cmd.Flags().String("invoice", "", "id of a saved invoice")
	cmd.Flags().String("transaction", "", "transaction id (generated when empty)")
	cmd.Flags().String("vendor", "", "vendor name")
	cmd.Flags().String("date", "", "purchase date (YYYY-MM-DD)")
	cmd.Flags().String("payment", "", "payment method")
	cmd.Flags().String("items", "", "items summary")
	cmd.Flags().Float64("amount", 0, "total amount")
	cmd.MarkFlagsMutuallyExclusive("invoice", "vendor")
	return cmd
}

func runPassIssue(cmd *cobra.Command, _ []string) error {
	invoiceID, _ := cmd.Flags().GetString("invoice")

	receipt := model.ReceiptData{}
	if invoiceID != "" {
		store, err := invoice.NewFileStore(cfg.Invoice.Dir)
		if err != nil {
			return err
		}
		inv, err := store.GetInvoice(invoiceID)
		if err != nil {
			return err
		}
		receipt = wallet.ReceiptFromInvoice(inv)
	} else {
		receipt.TransactionID, _ = cmd.Flags().GetString("transaction")
		receipt.VendorName, _ = cmd.Flags().GetString("vendor")
		receipt.PurchaseDate, _ = cmd.Flags().GetString("date")
		receipt.PaymentMethod, _ = cmd.Flags().GetString("payment")
		receipt.ItemsSummary, _ = cmd.Flags().GetString("items")
		receipt.TotalAmount, _ = cmd.Flags().GetFloat64("amount")
	}

	m, _ := newMetrics()
	issuer, err := newWalletIssuer(cmd.Context(), cfg, m)
	if err != nil {
		return err
	}

	pass, err := issuer.IssueReceipt(cmd.Context(), receipt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess("Pass issued: "+pass.ObjectID))
	_, err = fmt.Fprintln(out, pass.SaveURL)
	return err
}
