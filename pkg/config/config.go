package config

import (
	"fmt"
	"time"
)

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[creditcore]"`
}

// DB holds the connection settings. Postgres URLs select the postgres driver,
// anything else is handed to SQLite.
type DB struct {
	Url             string        `envconfig:"URL" default:"file:creditcore.db?_busy_timeout=5000"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	Migrate         bool          `envconfig:"MIGRATE" default:"true"`
}

type Redis struct {
	URL          string        `envconfig:"URL"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"creditcore:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Ledger struct {
	StorageTimeout   time.Duration `envconfig:"STORAGE_TIMEOUT" default:"3s"`
	AllowBypassDebit bool          `envconfig:"ALLOW_BYPASS_DEBIT" default:"false"`
	HistoryLimit     int           `envconfig:"HISTORY_LIMIT" default:"50"`
}

//revive:disable
type Stripe struct {
	ApiKey        string `envconfig:"API_KEY"`
	SigningSecret string `envconfig:"SIGNING_SECRET"`
	SuccessPath   string `envconfig:"SUCCESS_PATH" default:"http://localhost:3000/payment/stripe/success/"`
	CancelPath    string `envconfig:"CANCEL_PATH" default:"http://localhost:3000/payment/stripe/cancel/"`
}

//revive:enable

type Platform struct {
	Secret         string `envconfig:"SECRET"`
	InvoiceBaseURL string `envconfig:"INVOICE_BASE_URL" default:"https://t.me/$"`
	Currency       string `envconfig:"CURRENCY" default:"XTR"`
}

type Payment struct {
	Stripe                 *Stripe       `envconfig:"STRIPE"`
	Platform               *Platform     `envconfig:"PLATFORM"`
	CardSettlementCurrency string        `envconfig:"CARD_SETTLEMENT_CURRENCY" default:"USD"`
	PendingTTL             time.Duration `envconfig:"PENDING_TTL" default:"24h"`
	SweepSchedule          string        `envconfig:"SWEEP_SCHEDULE" default:"@every 5m"`
	SweepBatch             int           `envconfig:"SWEEP_BATCH" default:"100"`
}

type BalanceCache struct {
	TTL                 time.Duration `envconfig:"TTL" default:"5s"`
	Size                int           `envconfig:"SIZE" default:"10000"`
	InvalidationChannel string        `envconfig:"INVALIDATION_CHANNEL" default:"balance:invalidate"`
}

type Notify struct {
	Locale       string   `envconfig:"LOCALE" default:"en"`
	RedisStream  string   `envconfig:"REDIS_STREAM"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"credit-notifications"`
}

type Auth struct {
	TokenSecret string `envconfig:"TOKEN_SECRET"`
}

type App struct {
	Env               string                   `envconfig:"APP_ENV" default:"development"`
	Server            *Server                  `envconfig:"SERVER"`
	Log               *Log                     `envconfig:"LOG"`
	DB                *DB                      `envconfig:"DATABASE"`
	Redis             *Redis                   `envconfig:"REDIS"`
	RateLimit         *RateLimit               `envconfig:"RATE_LIMIT"`
	Ledger            *Ledger                  `envconfig:"LEDGER"`
	Payment           *Payment                 `envconfig:"PAYMENT"`
	BalanceCache      *BalanceCache            `envconfig:"BALANCE_CACHE"`
	Notify            *Notify                  `envconfig:"NOTIFY"`
	Auth              *Auth                    `envconfig:"AUTH"`
	SubscriptionTiers map[string]time.Duration `envconfig:"SUBSCRIPTION_TIERS" default:"basic:720h,pro:720h,premium:2160h"`
	DisplayRates      string                   `envconfig:"DISPLAY_RATES" default:"USD:0.01,EUR:0.0095,RUB:0.9"`
}
