package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Required values are enforced by must();
// optional ones fall back to sensible defaults.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret     string // secret used to sign booking-session tokens
	SessionTTLMin int    // Redis TTL safety net for booking sessions, minutes

	BookingAPIBase   string // base URL of the external cinema-operations API
	BookingAPIAppID  string // guest credentials for the external API (optional)
	BookingAPIAppKey string

	FiuuMerchantID string // payment gateway merchant account
	FiuuVerifyKey  string // key signing vcode and verifying skey
	FiuuCurrency   string // ISO currency code, default MYR
	PaymentReturn  string // absolute URL of the /payment/return route
	PaymentSuccess string // redirect target for settled payments
	PaymentFailed  string // redirect target for failed payments

	// TwinTicketTypeIDs lists ticket type IDs that must always be
	// treated as twin stock.  Some halls sell twin seats under plain
	// ticket names, so the mapping is data, not code.
	TwinTicketTypeIDs map[int]bool
}

// Load reads configuration values from environment variables and
// returns a Config.  Missing required variables abort startup with a
// fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		SessionTTLMin: atoiDefault(os.Getenv("SESSION_TTL_MIN"), 30),

		BookingAPIBase:   must("BOOKING_API_BASE_URL"),
		BookingAPIAppID:  os.Getenv("BOOKING_API_APP_ID"),
		BookingAPIAppKey: os.Getenv("BOOKING_API_APP_KEY"),

		FiuuMerchantID: must("FIUU_MERCHANT_ID"),
		FiuuVerifyKey:  must("FIUU_VERIFY_KEY"),
		FiuuCurrency:   getenv("FIUU_CURRENCY", "MYR"),
		PaymentReturn:  must("PAYMENT_RETURN_URL"),
		PaymentSuccess: must("PAYMENT_SUCCESS_URL"),
		PaymentFailed:  must("PAYMENT_FAILED_URL"),

		TwinTicketTypeIDs: parseIDSet(os.Getenv("TWIN_TICKET_TYPE_IDS")),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// parseIDSet parses a comma-separated list of integer IDs into a set.
// Invalid entries are skipped with a warning rather than aborting
// startup.
func parseIDSet(s string) map[int]bool {
	set := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Printf("config: skipping invalid twin ticket type id %q", part)
			continue
		}
		set[n] = true
	}
	return set
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
