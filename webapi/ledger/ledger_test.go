package ledger_test

import (
	"fmt"
	"testing"

	"github.com/amirasaad/creditcore/webapi/ledger"
	"github.com/amirasaad/creditcore/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
	app   *fiber.App
	token string
}

func (s *LedgerTestSuite) SetupTest() {
	s.app, _ = testutils.SetupTestApp(s.T(), nil)
	s.token = testutils.Token(s.T())
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) apply(op, direction, category string, amount float64) (int, *ledger.ApplyResponse) {
	body := fmt.Sprintf(`{"operation_id":%q,"user_id":7,"amount":%v,"direction":%q,"category":%q}`,
		op, amount, direction, category)
	resp := testutils.MakeRequestWithApp(s.app, fiber.MethodPost, "/api/v1/transactions", body, s.token)
	if resp.StatusCode >= 300 {
		resp.Body.Close() //nolint: errcheck
		return resp.StatusCode, nil
	}
	var out ledger.ApplyResponse
	testutils.DecodeData(s.T(), resp, &out)
	return resp.StatusCode, &out
}

func (s *LedgerTestSuite) TestApply() {
	status, res := s.apply("seed", "CREDIT", "purchase", 50)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Assert().InDelta(50, res.NewBalance, 0.001)

	status, res = s.apply("op-1", "DEBIT", "image_gen", 20)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Assert().InDelta(30, res.NewBalance, 0.001)
	s.Assert().False(res.Replayed)

	s.Run("Retry returns the original result", func() {
		status, again := s.apply("op-1", "DEBIT", "image_gen", 20)
		s.Require().Equal(fiber.StatusOK, status)
		s.Assert().True(again.Replayed)
		s.Assert().Equal(res.TransactionID, again.TransactionID)
		s.Assert().InDelta(30, again.NewBalance, 0.001)
	})

	s.Run("Insufficient funds", func() {
		status, _ := s.apply("op-2", "DEBIT", "image_gen", 40)
		s.Assert().Equal(fiber.StatusUnprocessableEntity, status)
	})

	s.Run("Conflicting reuse of an operation id", func() {
		status, _ := s.apply("op-1", "DEBIT", "image_gen", 25)
		s.Assert().Equal(fiber.StatusConflict, status)
	})
}

func (s *LedgerTestSuite) TestApplyValidation() {
	s.Run("Without auth", func() {
		resp := testutils.MakeRequestWithApp(s.app, fiber.MethodPost, "/api/v1/transactions",
			`{"operation_id":"x","user_id":7,"amount":1,"direction":"CREDIT","category":"purchase"}`, "")
		defer resp.Body.Close() //nolint: errcheck
		s.Assert().Equal(fiber.StatusBadRequest, resp.StatusCode)
	})

	s.Run("Unknown direction", func() {
		status, _ := s.apply("op", "SIDEWAYS", "purchase", 1)
		s.Assert().Equal(fiber.StatusBadRequest, status)
	})

	s.Run("Unknown category", func() {
		status, _ := s.apply("op", "DEBIT", "lottery", 1)
		s.Assert().Equal(fiber.StatusBadRequest, status)
	})

	s.Run("Too precise amount", func() {
		status, _ := s.apply("op", "CREDIT", "purchase", 0.001)
		s.Assert().Equal(fiber.StatusBadRequest, status)
	})

	s.Run("Bypassed debit refused", func() {
		resp := testutils.MakeRequestWithApp(s.app, fiber.MethodPost, "/api/v1/transactions",
			`{"operation_id":"adj","user_id":7,"amount":1,"direction":"DEBIT","category":"adjustment","bypass":true}`, s.token)
		pd := testutils.DecodeProblem(s.T(), resp)
		s.Assert().Equal(fiber.StatusBadRequest, pd.Status)
		s.Assert().Equal("/api/v1/transactions", pd.Instance)
	})
}

func (s *LedgerTestSuite) TestReverse() {
	_, _ = s.apply("seed", "CREDIT", "purchase", 50)
	_, _ = s.apply("gen-1", "DEBIT", "video_gen", 20)

	reverse := func(op string) int {
		resp := testutils.MakeRequestWithApp(s.app, fiber.MethodPost, "/api/v1/transactions/reverse",
			fmt.Sprintf(`{"user_id":7,"operation_id":%q,"reason":"generation failed"}`, op), s.token)
		defer resp.Body.Close() //nolint: errcheck
		return resp.StatusCode
	}

	s.Assert().Equal(fiber.StatusCreated, reverse("gen-1"))
	s.Assert().Equal(fiber.StatusConflict, reverse("gen-1"), "second reversal")
	s.Assert().Equal(fiber.StatusConflict, reverse("seed"), "credits cannot be reversed")
	s.Assert().Equal(fiber.StatusNotFound, reverse("missing"))
}

func (s *LedgerTestSuite) TestHistory() {
	for i := range 3 {
		_, _ = s.apply(fmt.Sprintf("t-%d", i), "CREDIT", "referral_bonus", 1)
	}

	resp := testutils.MakeRequestWithApp(s.app, fiber.MethodGet, "/api/v1/users/7/transactions", "", s.token)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var list []ledger.TransactionDTO
	testutils.DecodeData(s.T(), resp, &list)
	s.Require().Len(list, 3)
	s.Assert().Equal("COMPLETED", list[0].Status)

	resp = testutils.MakeRequestWithApp(s.app, fiber.MethodGet, "/api/v1/users/7/transactions?limit=1", "", s.token)
	testutils.DecodeData(s.T(), resp, &list)
	s.Assert().Len(list, 1)

	for _, path := range []string{"/api/v1/users/7/transactions?limit=-1", "/api/v1/users/abc/transactions"} {
		resp = testutils.MakeRequestWithApp(s.app, fiber.MethodGet, path, "", s.token)
		resp.Body.Close() //nolint: errcheck
		s.Assert().Equal(fiber.StatusBadRequest, resp.StatusCode, path)
	}
}
