package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/amirasaad/creditcore/infra/initializer"
	"github.com/amirasaad/creditcore/infra/provider/platformpay"
	"github.com/amirasaad/creditcore/pkg/app"
	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/money"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  balance <user_id>
  reconcile <user_id>
  history <user_id> [limit]
  reverse <user_id> <operation_id> [reason]
  sweep
  sign-callback <invoice_ref> <paid|failed> [amount] [currency]`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load configuration:", err)
		os.Exit(1)
	}
	// Signing needs only the secret, not the database.
	if os.Args[1] == "sign-callback" {
		if err := signCallback(cfg, os.Args[2:]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		return
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		fmt.Println("Failed to initialize dependencies:", err)
		os.Exit(1)
	}
	a, err := app.New(deps, cfg)
	if err != nil {
		fmt.Println("Failed to build application:", err)
		os.Exit(1)
	}
	defer a.Close() //nolint: errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := runCommand(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		fmt.Println("Error:", err)
		cancel()
		_ = a.Close()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "balance":
		userID, err := userArg(args)
		if err != nil {
			return err
		}
		b, err := a.BalanceService.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("User %d balance: %s\n", userID, b.Format(money.CRD))
	case "reconcile":
		userID, err := userArg(args)
		if err != nil {
			return err
		}
		rec, err := a.BalanceService.Reconcile(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("User %d: materialized %s, derived %s, drift %s\n", userID,
			rec.Materialized.Format(money.CRD), rec.Derived.Format(money.CRD), rec.Drift.Format(money.CRD))
	case "history":
		userID, err := userArg(args)
		if err != nil {
			return err
		}
		limit := 0
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid limit: %w", err)
			}
		}
		txs, err := a.LedgerService.History(ctx, userID, limit)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			fmt.Printf("%s  %-9s %-6s %12s  %-22s %s\n", tx.CreatedAt.Format(time.RFC3339),
				tx.Status, tx.Direction, tx.Amount.Format(money.CRD), tx.Category, tx.OperationID)
		}
	case "reverse":
		if len(args) < 2 {
			return fmt.Errorf("usage: reverse <user_id> <operation_id> [reason]")
		}
		userID, err := userArg(args)
		if err != nil {
			return err
		}
		reason := ""
		if len(args) > 2 {
			reason = args[2]
		}
		res, err := a.RefundService.Reverse(ctx, userID, args[1], reason)
		if err != nil {
			return err
		}
		fmt.Printf("Reversed %s: credited %s, new balance %s\n", res.OriginalOperationID,
			res.Amount.Format(money.CRD), res.NewBalance.Format(money.CRD))
	case "sweep":
		n, err := a.PaymentService.ExpireStale(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("Expired %d pending payments\n", n)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

func userArg(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing user_id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user_id %q", args[0])
	}
	return id, nil
}

func signCallback(cfg *config.App, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: sign-callback <invoice_ref> <paid|failed> [amount] [currency]")
	}
	if cfg.Payment == nil || cfg.Payment.Platform == nil || cfg.Payment.Platform.Secret == "" {
		return fmt.Errorf("PAYMENT_PLATFORM_SECRET is not set")
	}
	claims := platformpay.CallbackClaims{InvoiceRef: args[0], Status: args[1]}
	if len(args) > 2 {
		amount, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		claims.Amount = amount
		claims.Currency = cfg.Payment.Platform.Currency
	}
	if len(args) > 3 {
		claims.Currency = args[3]
	}
	token, err := platformpay.SignCallback(cfg.Payment.Platform.Secret, claims)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
