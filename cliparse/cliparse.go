package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	MongoURI      string
	MongoDatabase string

	// Optional collaborators; features degrade gracefully when unset.
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	// Secrets
	AccessTokenSecret  string
	RefreshTokenSecret string
	ShareTokenSecret   string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	InviteTTL       time.Duration

	// Email
	SMTPAddr string
	SMTPFrom string

	// BaseURL prefixes share and invite links.
	BaseURL string
}

// ParseFlags validates flags and fills in environment fallbacks. A .env file
// in the working directory is loaded first, if present.
func ParseFlags(args []string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var brokers string

	fs := flag.NewFlagSet("tallyup", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.MongoURI, "m", "", "MongoDB connection URI")
	fs.StringVar(&cfg.MongoDatabase, "db", "", "MongoDB database name")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for rate limiting (optional)")
	fs.StringVar(&brokers, "kafka-brokers", "", "Comma-separated Kafka brokers for vote events (optional)")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", "", "Kafka topic for vote events")
	fs.StringVar(&cfg.SMTPAddr, "smtp", "", "SMTP host:port for outgoing mail (optional)")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", "", "From address for outgoing mail")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Public base URL for share/invite links")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AccessTokenSecret, "access-secret", "", "Access token signing secret (prefer env)")
	fs.StringVar(&cfg.RefreshTokenSecret, "refresh-secret", "", "Refresh token signing secret (prefer env)")
	fs.StringVar(&cfg.ShareTokenSecret, "share-secret", "", "Capability token signing secret (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}

	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGO_URI")
	}
	if cfg.MongoURI == "" {
		return Config{}, errors.New("mongo URI required (use -m or MONGO_URI env)")
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = os.Getenv("MONGO_DATABASE")
		if cfg.MongoDatabase == "" {
			cfg.MongoDatabase = "tallyup"
		}
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKERS")
	}
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = os.Getenv("KAFKA_TOPIC")
		if cfg.KafkaTopic == "" {
			cfg.KafkaTopic = "votes"
		}
	}

	// Secrets - MUST be provided
	if cfg.AccessTokenSecret == "" {
		cfg.AccessTokenSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	}
	if cfg.AccessTokenSecret == "" {
		return Config{}, errors.New("ACCESS_TOKEN_SECRET required")
	}

	if cfg.RefreshTokenSecret == "" {
		cfg.RefreshTokenSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	}
	if cfg.RefreshTokenSecret == "" {
		return Config{}, errors.New("REFRESH_TOKEN_SECRET required")
	}

	if cfg.ShareTokenSecret == "" {
		cfg.ShareTokenSecret = os.Getenv("SHARE_TOKEN_SECRET")
	}
	if cfg.ShareTokenSecret == "" {
		return Config{}, errors.New("SHARE_TOKEN_SECRET required")
	}

	if cfg.SMTPAddr == "" {
		cfg.SMTPAddr = os.Getenv("SMTP_ADDR")
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = os.Getenv("SMTP_FROM")
		if cfg.SMTPFrom == "" {
			cfg.SMTPFrom = "no-reply@tallyup.app"
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("BASE_URL")
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:" + strconv.Itoa(cfg.Port)
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	cfg.AccessTokenTTL = 15 * time.Minute
	cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.InviteTTL = 7 * 24 * time.Hour
	if ttlStr := os.Getenv("ACCESS_TOKEN_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return Config{}, errors.New("invalid ACCESS_TOKEN_TTL env variable")
		}
		cfg.AccessTokenTTL = ttl
	}

	return cfg, nil
}
