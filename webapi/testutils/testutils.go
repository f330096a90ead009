// Package testutils builds a fully wired HTTP app for handler tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infraeventbus "github.com/amirasaad/creditcore/infra/eventbus"
	"github.com/amirasaad/creditcore/infra/notifier"
	"github.com/amirasaad/creditcore/infra/provider/mockpayment"
	"github.com/amirasaad/creditcore/infra/provider/platformpay"
	infrarepo "github.com/amirasaad/creditcore/infra/repository"
	"github.com/amirasaad/creditcore/pkg/app"
	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/metrics"
	provider "github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/amirasaad/creditcore/pkg/testutils"
	"github.com/amirasaad/creditcore/webapi"
	"github.com/amirasaad/creditcore/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	// AuthSecret signs API bearer tokens in tests.
	AuthSecret = "test-auth-secret"
	// PlatformSecret signs platform gateway callbacks in tests.
	PlatformSecret = "test-platform-secret"
)

// TestConfig returns a configuration with the platform rail enabled.
func TestConfig() *config.App {
	return &config.App{
		Env:       "test",
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
		Ledger:    &config.Ledger{StorageTimeout: 5 * time.Second, HistoryLimit: 50},
		Payment: &config.Payment{
			Platform:      &config.Platform{Secret: PlatformSecret, InvoiceBaseURL: "https://t.me/$", Currency: "XTR"},
			PendingTTL:    time.Hour,
			SweepSchedule: "@every 5m",
			SweepBatch:    10,
		},
		BalanceCache:      &config.BalanceCache{TTL: time.Minute, Size: 100},
		Notify:            &config.Notify{Locale: "en"},
		Auth:              &config.Auth{TokenSecret: AuthSecret},
		SubscriptionTiers: map[string]time.Duration{"pro": 30 * 24 * time.Hour},
		DisplayRates:      "USD:0.01,EUR:0.0095",
	}
}

// SetupTestApp wires the services on an in-memory database and returns the
// HTTP app together with the services behind it.
func SetupTestApp(t *testing.T, cfg *config.App) (*fiber.App, *app.App) {
	t.Helper()
	if cfg == nil {
		cfg = TestConfig()
	}
	reg := prometheus.NewRegistry()
	m, err := metrics.New("creditcore", reg)
	require.NoError(t, err)

	logger := slog.Default()
	a, err := app.New(&app.Deps{
		Uow:        infrarepo.NewUoW(testutils.NewTestDB(t)),
		EventBus:   infraeventbus.NewWithMemory(logger),
		Gateways: []provider.Gateway{
			platformpay.New(cfg.Payment.Platform, logger),
			mockpayment.NewMockPaymentProvider(credit.GatewayCard),
		},
		Dispatcher: notifier.NewLog(logger),
		Metrics:    m,
		Gatherer:   reg,
		Logger:     logger,
	}, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return webapi.SetupApp(a), a
}

// CardGateway returns the in-memory gateway standing in for the card rail.
func CardGateway(t *testing.T, a *app.App) *mockpayment.MockPaymentProvider {
	t.Helper()
	gw, ok := a.PaymentService.Gateway(credit.GatewayCard)
	require.True(t, ok)
	m, ok := gw.(*mockpayment.MockPaymentProvider)
	require.True(t, ok)
	return m
}

// Token returns a bearer token accepted by the protected routes.
func Token(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "test-bot",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := token.SignedString([]byte(AuthSecret))
	require.NoError(t, err)
	return s
}

// PlatformCallback signs a platform gateway callback.
func PlatformCallback(t *testing.T, claims platformpay.CallbackClaims) string {
	t.Helper()
	s, err := platformpay.SignCallback(PlatformSecret, claims)
	require.NoError(t, err)
	return s
}

// MakeRequestWithApp is a helper for making HTTP requests with a standalone app.
func MakeRequestWithApp(app *fiber.App, method, path, body, token string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		panic(err) // For standalone tests, panic on error
	}
	return resp
}

// DecodeData decodes the data field of a success envelope into out.
func DecodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close() //nolint: errcheck
	var envelope struct {
		common.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// DecodeProblem decodes a Problem Details body.
func DecodeProblem(t *testing.T, resp *http.Response) common.ProblemDetails {
	t.Helper()
	defer resp.Body.Close() //nolint: errcheck
	var pd common.ProblemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}
