package platformpay_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/creditcore/infra/provider/platformpay"
	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "platform-secret"

func newProvider() *platformpay.Provider {
	return platformpay.New(&config.Platform{
		Secret:         secret,
		InvoiceBaseURL: "https://t.me/$",
		Currency:       "XTR",
	}, nil)
}

func sign(t *testing.T, c platformpay.CallbackClaims) []byte {
	t.Helper()
	token, err := platformpay.SignCallback(secret, c)
	require.NoError(t, err)
	return []byte(token)
}

func TestCreateInvoice(t *testing.T) {
	inv, err := newProvider().CreateInvoice(context.Background(), &payment.InvoiceParams{Ref: "inv-7", Price: 50, Currency: money.XTR})
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/$inv-7", inv.URL)

	_, err = platformpay.New(&config.Platform{}, nil).CreateInvoice(context.Background(), &payment.InvoiceParams{Ref: "inv-7"})
	assert.Error(t, err)
}

func TestParseCallback(t *testing.T) {
	ctx := context.Background()
	p := newProvider()

	cb, err := p.ParseCallback(ctx, sign(t, platformpay.CallbackClaims{
		InvoiceRef: "inv-7", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR", ChargeID: "ch_1",
	}), "")
	require.NoError(t, err)
	success, ok := cb.(payment.GatewaySuccess)
	require.True(t, ok)
	assert.Equal(t, credit.GatewayPlatform, success.Source())
	assert.Equal(t, money.Amount(50), success.Amount)
	assert.Equal(t, money.XTR, success.Currency)
	assert.Equal(t, "ch_1", success.External["charge_id"])

	cb, err = p.ParseCallback(ctx, nil, "Bearer "+string(sign(t, platformpay.CallbackClaims{
		InvoiceRef: "inv-8", Status: platformpay.StatusFailed,
	})))
	require.NoError(t, err)
	failure, ok := cb.(payment.GatewayFailure)
	require.True(t, ok)
	assert.Equal(t, "inv-8", failure.InvoiceRef())
	assert.Equal(t, credit.ReasonGatewayDeclined, failure.Reason)
}

func TestParseCallback_Rejects(t *testing.T) {
	ctx := context.Background()
	p := newProvider()

	forged, err := platformpay.SignCallback("other-secret", platformpay.CallbackClaims{InvoiceRef: "inv-7", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR"})
	require.NoError(t, err)
	_, err = p.ParseCallback(ctx, []byte(forged), "")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	expired := platformpay.CallbackClaims{InvoiceRef: "inv-7", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR"}
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	_, err = p.ParseCallback(ctx, sign(t, expired), "")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	_, err = p.ParseCallback(ctx, sign(t, platformpay.CallbackClaims{InvoiceRef: "inv-7", Status: "refunded"}), "")
	assert.ErrorIs(t, err, payment.ErrMalformedCallback)

	_, err = p.ParseCallback(ctx, sign(t, platformpay.CallbackClaims{InvoiceRef: "inv-7", Status: platformpay.StatusPaid}), "")
	assert.ErrorIs(t, err, payment.ErrMalformedCallback)

	_, err = p.ParseCallback(ctx, []byte("not-a-token"), "")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}
