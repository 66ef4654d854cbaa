package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Database and token settings are required;
// the board tuning knobs fall back to the reference behavior when unset.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password and room-secret hashing

	// Board lifecycle knobs. Defaults mirror the reference behavior:
	// boards live 24h, one hourglass buys one extra hour.
	RoomDefaultLifespan time.Duration // initial lifespan of a new room
	RoomMaxLifespan     time.Duration // progress-percentage denominator
	RoomExtension       time.Duration // lifespan added per extension
	ExtensionCost       uint32        // hourglasses consumed per room extension

	// Pin knobs. One hourglass adds one minute to a live pin; reports
	// from distinct identities force-expire it at the threshold.
	PinExtension       time.Duration // duration added per pin extension
	PinExtensionCost   uint32        // hourglasses consumed per pin extension
	PinMaxExtensions   uint32        // cumulative extension cap per pin instance
	PinReportThreshold int           // distinct reporters required to revoke

	StartingHourglasses uint32 // balance granted to new accounts
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		RoomDefaultLifespan: envDurHours("ROOM_DEFAULT_LIFESPAN_HOURS", 24),
		RoomMaxLifespan:     envDurHours("ROOM_MAX_LIFESPAN_HOURS", 24),
		RoomExtension:       envDurMinutes("ROOM_EXTENSION_MINUTES", 60),
		ExtensionCost:       uint32(envIntDefault("ROOM_EXTENSION_COST", 1)),

		PinExtension:       envDurMinutes("PIN_EXTENSION_MINUTES", 1),
		PinExtensionCost:   uint32(envIntDefault("PIN_EXTENSION_COST", 1)),
		PinMaxExtensions:   uint32(envIntDefault("PIN_MAX_EXTENSIONS", 30)),
		PinReportThreshold: envIntDefault("PIN_REPORT_THRESHOLD", 30),

		StartingHourglasses: uint32(envIntDefault("STARTING_HOURGLASSES", 3)),
	}
}

// ExtensionMinutes is the contribution credit recorded per room
// extension, matching the extension increment.
func (c Config) ExtensionMinutes() uint32 {
	return uint32(c.RoomExtension / time.Minute)
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("config: invalid value for %s: %q, using %d", key, v, def)
		return def
	}
	return n
}

func envDurHours(key string, defHours int) time.Duration {
	return time.Duration(envIntDefault(key, defHours)) * time.Hour
}

func envDurMinutes(key string, defMinutes int) time.Duration {
	return time.Duration(envIntDefault(key, defMinutes)) * time.Minute
}
