package ledger

import (
	"testing"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/stretchr/testify/assert"
)

func TestFlightKey(t *testing.T) {
	req := ApplyRequest{
		OperationID: "adj-1",
		UserID:      1,
		Amount:      500,
		Direction:   credit.Debit,
		Category:    credit.CategoryAdjustment,
	}
	bypassed := req
	bypassed.Bypass = true

	assert.Equal(t, flightKey(req, false), flightKey(req, false))
	assert.NotEqual(t, flightKey(req, false), flightKey(bypassed, false))
	assert.NotEqual(t, flightKey(req, false), flightKey(req, true))
}
