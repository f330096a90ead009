package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirasaad/creditcore/infra/provider/mockpayment"
	"github.com/amirasaad/creditcore/infra/provider/platformpay"
	"github.com/amirasaad/creditcore/pkg/app"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/webapi/payment"
	"github.com/amirasaad/creditcore/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

type PaymentTestSuite struct {
	suite.Suite
	app   *fiber.App
	svc   *app.App
	token string
}

func (s *PaymentTestSuite) SetupTest() {
	s.app, s.svc = testutils.SetupTestApp(s.T(), nil)
	s.token = testutils.Token(s.T())
}

func TestPaymentTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentTestSuite))
}

func (s *PaymentTestSuite) create(body string) (int, *payment.PaymentDTO) {
	resp := testutils.MakeRequestWithApp(s.app, fiber.MethodPost, "/api/v1/payments", body, s.token)
	if resp.StatusCode != fiber.StatusCreated {
		resp.Body.Close() //nolint: errcheck
		return resp.StatusCode, nil
	}
	var out payment.PaymentDTO
	testutils.DecodeData(s.T(), resp, &out)
	return resp.StatusCode, &out
}

func (s *PaymentTestSuite) webhook(token string) (int, map[string]any) {
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/platform", strings.NewReader(token))
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *PaymentTestSuite) TestPurchaseLifecycle() {
	status, p := s.create(`{"invoice_ref":"inv-7","user_id":3,"credits":100,"price":50,"gateway":"platform"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Assert().Equal("PENDING", p.Status)
	s.Assert().Equal("XTR", p.Currency)
	s.Assert().Equal("https://t.me/$inv-7", p.URL)

	paid := testutils.PlatformCallback(s.T(), platformpay.CallbackClaims{
		InvoiceRef: "inv-7", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR", ChargeID: "ch_1",
	})

	s.Run("First delivery credits the user", func() {
		status, body := s.webhook(paid)
		s.Require().Equal(fiber.StatusOK, status)
		s.Assert().Equal("COMPLETED", body["status"])
		s.Assert().Equal(false, body["already_final"])
	})

	s.Run("Redelivery is acknowledged without effect", func() {
		status, body := s.webhook(paid)
		s.Require().Equal(fiber.StatusOK, status)
		s.Assert().Equal(true, body["already_final"])
	})

	b, err := s.svc.BalanceService.GetBalance(context.Background(), 3)
	s.Require().NoError(err)
	s.Assert().Equal(money.MustParse(100, money.CRD), b)

	resp := testutils.MakeRequestWithApp(s.app, fiber.MethodGet, "/api/v1/payments/inv-7", "", s.token)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var got payment.PaymentDTO
	testutils.DecodeData(s.T(), resp, &got)
	s.Assert().Equal("COMPLETED", got.Status)
	s.Assert().InDelta(100, got.Credits, 0.001)
}

func (s *PaymentTestSuite) TestCardPurchaseSettlesInUSD() {
	status, p := s.create(`{"invoice_ref":"inv-card","user_id":3,"credits":500,"price":4.99,"currency":"RUB","gateway":"stripe"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Assert().Equal("USD", p.Currency, "card rail ignores the locale hint")
	s.Assert().InDelta(4.99, p.Price, 0.0001)

	invoice, ok := testutils.CardGateway(s.T(), s.svc).Invoice("inv-card")
	s.Require().True(ok)
	s.Assert().Equal(money.Amount(499), invoice.Price)

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe",
		bytes.NewReader(mockpayment.Paid("inv-card", 499, money.USD)))
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	resp.Body.Close() //nolint: errcheck
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	b, err := s.svc.BalanceService.GetBalance(context.Background(), 3)
	s.Require().NoError(err)
	s.Assert().Equal(money.MustParse(500, money.CRD), b)
}

func (s *PaymentTestSuite) TestFailedPayment() {
	status, _ := s.create(`{"invoice_ref":"inv-8","user_id":3,"credits":100,"price":50,"gateway":"platform"}`)
	s.Require().Equal(fiber.StatusCreated, status)

	status, body := s.webhook(testutils.PlatformCallback(s.T(), platformpay.CallbackClaims{
		InvoiceRef: "inv-8", Status: platformpay.StatusFailed,
	}))
	s.Require().Equal(fiber.StatusOK, status)
	s.Assert().Equal("FAILED", body["status"])

	b, err := s.svc.BalanceService.GetBalance(context.Background(), 3)
	s.Require().NoError(err)
	s.Assert().Zero(b)
}

func (s *PaymentTestSuite) TestPlatformTokenInAuthorizationHeader() {
	status, _ := s.create(`{"invoice_ref":"inv-hdr","user_id":3,"credits":100,"price":50,"gateway":"platform"}`)
	s.Require().Equal(fiber.StatusCreated, status)

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/platform", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+testutils.PlatformCallback(s.T(), platformpay.CallbackClaims{
		InvoiceRef: "inv-hdr", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR",
	}))
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Assert().Equal("COMPLETED", body["status"])
}

func (s *PaymentTestSuite) TestPendingPurchaseCannotBeAppliedDirectly() {
	status, _ := s.create(`{"invoice_ref":"inv-direct","user_id":3,"credits":100,"price":50,"gateway":"platform"}`)
	s.Require().Equal(fiber.StatusCreated, status)

	resp := testutils.MakeRequestWithApp(s.app, fiber.MethodPost, "/api/v1/transactions",
		`{"operation_id":"inv-direct","user_id":3,"amount":100,"direction":"CREDIT","category":"purchase"}`, s.token)
	resp.Body.Close() //nolint: errcheck
	s.Assert().Equal(fiber.StatusConflict, resp.StatusCode)

	b, err := s.svc.BalanceService.GetBalance(context.Background(), 3)
	s.Require().NoError(err)
	s.Assert().Zero(b)

	status, body := s.webhook(testutils.PlatformCallback(s.T(), platformpay.CallbackClaims{
		InvoiceRef: "inv-direct", Status: platformpay.StatusFailed,
	}))
	s.Require().Equal(fiber.StatusOK, status)
	s.Assert().Equal("FAILED", body["status"])
	s.Assert().Equal(false, body["already_final"])
}

func (s *PaymentTestSuite) TestWebhookRejections() {
	s.Run("Bad signature", func() {
		token, err := platformpay.SignCallback("wrong", platformpay.CallbackClaims{
			InvoiceRef: "inv-9", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR",
		})
		s.Require().NoError(err)
		status, _ := s.webhook(token)
		s.Assert().Equal(fiber.StatusUnauthorized, status)
	})

	s.Run("Unknown invoice", func() {
		status, _ := s.webhook(testutils.PlatformCallback(s.T(), platformpay.CallbackClaims{
			InvoiceRef: "nope", Status: platformpay.StatusPaid, Amount: 50, Currency: "XTR",
		}))
		s.Assert().Equal(fiber.StatusNotFound, status)
	})

	s.Run("Empty body", func() {
		status, _ := s.webhook("")
		s.Assert().Equal(fiber.StatusBadRequest, status)
	})

	s.Run("Malformed card callback", func() {
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		resp, err := s.app.Test(req, -1)
		s.Require().NoError(err)
		defer resp.Body.Close() //nolint: errcheck
		s.Assert().Equal(fiber.StatusBadRequest, resp.StatusCode)
	})
}

func (s *PaymentTestSuite) TestCreateValidation() {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown gateway", `{"user_id":3,"credits":100,"price":50,"gateway":"cash"}`, fiber.StatusBadRequest},
		{"subscription without tier", `{"user_id":3,"credits":100,"price":50,"gateway":"platform","category":"subscription_purchase"}`, fiber.StatusBadRequest},
		{"unknown tier", `{"user_id":3,"credits":100,"price":50,"gateway":"platform","category":"subscription_purchase","subscription_tier":"gold"}`, fiber.StatusBadRequest},
		{"fractional stars", `{"user_id":3,"credits":100,"price":0.5,"gateway":"platform"}`, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			status, _ := s.create(tt.body)
			s.Assert().Equal(tt.want, status)
		})
	}

	testutils.CardGateway(s.T(), s.svc).FailNext(errors.New("stripe is down"))
	status, _ := s.create(`{"user_id":3,"credits":100,"price":4.99,"gateway":"stripe"}`)
	s.Assert().Equal(fiber.StatusBadGateway, status)

	status, _ = s.create(`{"invoice_ref":"dup","user_id":3,"credits":1,"price":1,"gateway":"platform"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	status, _ = s.create(`{"invoice_ref":"dup","user_id":3,"credits":1,"price":1,"gateway":"platform"}`)
	s.Assert().Equal(fiber.StatusConflict, status)

	resp := testutils.MakeRequestWithApp(s.app, fiber.MethodGet, "/api/v1/payments/missing", "", s.token)
	resp.Body.Close() //nolint: errcheck
	s.Assert().Equal(fiber.StatusNotFound, resp.StatusCode)
}
