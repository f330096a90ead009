// Package ledger exposes the transaction processor and the reversal handler over HTTP.
package ledger

import (
	"strconv"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	ledgersvc "github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/amirasaad/creditcore/pkg/service/refund"
	"github.com/amirasaad/creditcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Routes registers the ledger endpoints behind protected.
//
// Routes:
//   - POST /api/v1/transactions             : Apply a credit or debit once per operation id.
//   - POST /api/v1/transactions/reverse     : Credit back a completed debit.
//   - GET  /api/v1/users/:id/transactions   : Recent transactions of a user, newest first.
func Routes(
	app *fiber.App,
	ledgerSvc *ledgersvc.Service,
	refundSvc *refund.Service,
	protected fiber.Handler,
) {
	app.Post("/api/v1/transactions", protected, Apply(ledgerSvc))
	app.Post("/api/v1/transactions/reverse", protected, Reverse(refundSvc))
	app.Get("/api/v1/users/:id/transactions", protected, History(ledgerSvc))
}

// Apply returns a handler that applies a transaction. Retries with the same
// operation id return the original result with "replayed" set.
func Apply(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[ApplyRequest](c)
		if input == nil {
			return err
		}
		amount, err := money.ParseAmount(input.Amount, money.CRD)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		res, err := svc.Apply(c.UserContext(), ledgersvc.ApplyRequest{
			OperationID: input.OperationID,
			UserID:      input.UserID,
			Amount:      amount,
			Direction:   credit.Direction(input.Direction),
			Category:    credit.Category(input.Category),
			Description: input.Description,
			Bypass:      input.Bypass,
		})
		if err != nil {
			if !credit.IsRetryable(err) {
				log.Infof("Transaction %s for user %d rejected: %v", input.OperationID, input.UserID, err)
			} else {
				log.Errorf("Transaction %s for user %d failed: %v", input.OperationID, input.UserID, err)
			}
			return common.ProblemDetailsJSON(c, "Transaction not applied", err)
		}
		status, message := fiber.StatusCreated, "Transaction applied"
		if res.Replayed {
			status, message = fiber.StatusOK, "Transaction already applied"
		}
		return common.SuccessResponseJSON(c, status, message, toApplyResponse(res))
	}
}

// Reverse returns a handler that reverses a completed debit.
func Reverse(svc *refund.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[ReverseRequest](c)
		if input == nil {
			return err
		}
		res, err := svc.Reverse(c.UserContext(), input.UserID, input.OperationID, input.Reason)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Reversal not applied", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transaction reversed", toReverseResponse(res))
	}
}

// History returns a handler listing a user's transactions. ?limit caps the
// page below the configured maximum.
func History(svc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := common.ParseUserID(c, "id")
		if userID == 0 {
			return err
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				return common.ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			}
		}
		txs, err := svc.History(c.UserContext(), userID, limit)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		out := make([]*TransactionDTO, 0, len(txs))
		for _, tx := range txs {
			out = append(out, ToTransactionDTO(tx))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", out)
	}
}
