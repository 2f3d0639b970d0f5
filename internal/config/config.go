package config

import (
	stderrors "errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	IdentityLocal    = "local"
	IdentityFirebase = "firebase"

	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"

	DefaultAppID = "digital-memory-assistant-local"
)

type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string
	LogLevel    logrus.Level

	AppID     string
	AuthToken string

	IdentityBackend string
	StoreBackend    string

	LocalTokenSecret    string
	LocalAllowAnonymous bool
	IdentityStateFile   string
	NotesStateFile      string
	SQLitePath          string

	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseCredentialsJSON string

	NotesRateLimit int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// LoadConfig reads the process environment, after merging a .env file from
// the working directory when one exists.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("config: ignoring unreadable .env")
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:                3000,
		GinMode:             "release",
		LogLevel:            logrus.InfoLevel,
		AppID:               DefaultAppID,
		IdentityBackend:     IdentityLocal,
		StoreBackend:        StoreMemory,
		LocalAllowAnonymous: true,
		SQLitePath:          "notes.db",
		NotesRateLimit:      30,
	}
	var errs []error

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			errs = append(errs, errors.Errorf("invalid PORT %q", raw))
		} else {
			cfg.Port = port
		}
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			errs = append(errs, errors.Wrap(err, "invalid LOG_LEVEL"))
		} else {
			cfg.LogLevel = level
		}
	}

	if raw := strings.TrimSpace(env.Getenv("NOTES_APP_ID")); raw != "" {
		cfg.AppID = raw
	}
	if strings.Contains(cfg.AppID, "/") {
		errs = append(errs, errors.Errorf("NOTES_APP_ID %q must not contain '/'", cfg.AppID))
	}
	cfg.AuthToken = strings.TrimSpace(env.Getenv("NOTES_AUTH_TOKEN"))

	if raw := env.Getenv("IDENTITY_BACKEND"); raw != "" {
		cfg.IdentityBackend = strings.ToLower(raw)
	}
	switch cfg.IdentityBackend {
	case IdentityLocal, IdentityFirebase:
	default:
		errs = append(errs, errors.Errorf("invalid IDENTITY_BACKEND %q", cfg.IdentityBackend))
	}

	if raw := env.Getenv("STORE_BACKEND"); raw != "" {
		cfg.StoreBackend = strings.ToLower(raw)
	}
	switch cfg.StoreBackend {
	case StoreMemory, StoreSQLite, StoreFirestore:
	default:
		errs = append(errs, errors.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend))
	}

	cfg.LocalTokenSecret = env.Getenv("LOCAL_TOKEN_SECRET")
	if raw := env.Getenv("LOCAL_ALLOW_ANONYMOUS"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, errors.Errorf("invalid LOCAL_ALLOW_ANONYMOUS %q", raw))
		} else {
			cfg.LocalAllowAnonymous = allow
		}
	}
	cfg.IdentityStateFile = env.Getenv("IDENTITY_STATE_FILE")
	cfg.NotesStateFile = env.Getenv("NOTES_STATE_FILE")
	if raw := env.Getenv("SQLITE_PATH"); raw != "" {
		cfg.SQLitePath = raw
	}

	cfg.FirebaseProjectID = env.Getenv("FIREBASE_PROJECT_ID")
	cfg.FirebaseAPIKey = env.Getenv("FIREBASE_API_KEY")
	cfg.FirebaseCredentialsJSON = env.Getenv("FIREBASE_CREDENTIALS_JSON")
	if cfg.NeedsFirebase() && cfg.FirebaseProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firebase backends"))
	}
	if cfg.IdentityBackend == IdentityFirebase && cfg.FirebaseAPIKey == "" {
		errs = append(errs, errors.New("FIREBASE_API_KEY is required for firebase identity"))
	}

	if raw := env.Getenv("NOTES_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			errs = append(errs, errors.Errorf("invalid NOTES_RATE_LIMIT %q", raw))
		} else {
			cfg.NotesRateLimit = limit
		}
	}

	if err := stderrors.Join(errs...); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func (c Config) NeedsFirebase() bool {
	return c.IdentityBackend == IdentityFirebase || c.StoreBackend == StoreFirestore
}
