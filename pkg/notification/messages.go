package notification

import (
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	msgCredited          = "credited"
	msgDebited           = "debited"
	msgInsufficientFunds = "insufficient_funds"
	msgPaymentFailed     = "payment_failed"
	msgPaymentExpired    = "payment_expired"
	msgAmountMismatch    = "amount_mismatch"
	msgTryAgain          = "try_again"
)

var supported = []language.Tag{language.English, language.Russian}

type entry struct {
	key string
	en  string
	ru  string
}

var entries = []entry{
	{msgCredited, "%[1]s credited (%[2]s). Balance: %[3]s.", "Зачислено %[1]s (%[2]s). Баланс: %[3]s."},
	{msgDebited, "%[1]s spent on %[2]s. Balance: %[3]s.", "Списано %[1]s за %[2]s. Баланс: %[3]s."},
	{msgInsufficientFunds, "Not enough credits for this operation.", "Недостаточно кредитов для этой операции."},
	{msgPaymentFailed, "Your payment could not be completed.", "Не удалось провести платёж."},
	{msgPaymentExpired, "Your payment link has expired.", "Срок действия ссылки на оплату истёк."},
	{msgAmountMismatch, "The paid amount did not match the invoice. Contact support.", "Оплаченная сумма не совпала со счётом. Обратитесь в поддержку."},
	{msgTryAgain, "Something went wrong. Please try again.", "Что-то пошло не так. Попробуйте ещё раз."},
}

var categories = map[credit.Category][2]string{
	credit.CategoryImageGen:             {"image generation", "генерацию изображения"},
	credit.CategoryVideoGen:             {"video generation", "генерацию видео"},
	credit.CategoryVoiceGen:             {"voice generation", "генерацию голоса"},
	credit.CategoryTextGen:              {"text generation", "генерацию текста"},
	credit.CategoryPurchase:             {"purchase", "покупка"},
	credit.CategorySubscriptionPurchase: {"subscription", "подписка"},
	credit.CategoryReferralBonus:        {"referral bonus", "реферальный бонус"},
	credit.CategoryRefund:               {"refund", "возврат"},
	credit.CategoryAdjustment:           {"adjustment", "корректировка"},
}

// Localizer renders notices in one of the supported languages.
type Localizer struct {
	catalog *catalog.Builder
	matcher language.Matcher
	tag     language.Tag
}

// NewLocalizer returns a Localizer for locale, e.g. "ru" or "en-GB".
// Unsupported locales fall back to English.
func NewLocalizer(locale string) *Localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, e := range entries {
		_ = b.SetString(language.English, e.key, e.en)
		_ = b.SetString(language.Russian, e.key, e.ru)
	}
	l := &Localizer{catalog: b, matcher: language.NewMatcher(supported)}
	l.tag = l.match(locale)
	return l
}

func (l *Localizer) match(locale string) language.Tag {
	tag, _ := language.MatchStrings(l.matcher, locale)
	base, _ := tag.Base()
	if base.String() == "ru" {
		return language.Russian
	}
	return language.English
}

// Language returns the tag notices are rendered in.
func (l *Localizer) Language() language.Tag {
	return l.tag
}

func (l *Localizer) printer() *message.Printer {
	return message.NewPrinter(l.tag, message.Catalog(l.catalog))
}

// Success renders the text of a completed balance change.
func (l *Localizer) Success(n SuccessNotice) string {
	key := msgCredited
	if n.Direction == credit.Debit {
		key = msgDebited
	}
	return l.printer().Sprintf(key,
		n.Amount.Format(money.CRD), l.category(n.Category), n.NewBalance.Format(money.CRD))
}

// Failure renders the text for a failure reason.
func (l *Localizer) Failure(n FailureNotice) string {
	key := msgTryAgain
	switch n.Reason {
	case credit.ReasonInsufficientFunds:
		key = msgInsufficientFunds
	case credit.ReasonExpired:
		key = msgPaymentExpired
	case credit.ReasonAmountMismatch:
		key = msgAmountMismatch
	case credit.ReasonStorageFailure:
		key = msgTryAgain
	default:
		if n.Kind == KindPayment {
			key = msgPaymentFailed
		}
	}
	return l.printer().Sprintf(key)
}

func (l *Localizer) category(c credit.Category) string {
	names, ok := categories[c]
	if !ok {
		return string(c)
	}
	if l.tag == language.Russian {
		return names[1]
	}
	return names[0]
}
