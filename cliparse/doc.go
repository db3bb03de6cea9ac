// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first if present.

# CLI Flags

	-p               Server port
	-m               MongoDB connection URI
	-db              MongoDB database name
	-redis           Redis URL for rate limiting
	-kafka-brokers   Comma-separated Kafka broker addresses
	-kafka-topic     Kafka topic for vote events
	-smtp            SMTP server address (host:port)
	-smtp-from       From address for outgoing mail
	-base-url        Public base URL used in invite and share links
	-access-secret   Access token signing secret
	-refresh-secret  Refresh token signing secret
	-share-secret    Invite/share token signing secret

# Environment Variables

Flags fall back to environment variables:

	PORT                 → -p
	MONGO_URI            → -m
	MONGO_DATABASE       → -db
	REDIS_URL            → -redis
	KAFKA_BROKERS        → -kafka-brokers
	KAFKA_TOPIC          → -kafka-topic
	SMTP_ADDR            → -smtp
	SMTP_FROM            → -smtp-from
	BASE_URL             → -base-url
	ACCESS_TOKEN_SECRET  → -access-secret
	REFRESH_TOKEN_SECRET → -refresh-secret
	SHARE_TOKEN_SECRET   → -share-secret

Token TTLs are env-only: ACCESS_TOKEN_TTL (default 15m), REFRESH_TOKEN_TTL
and INVITE_TTL (default 168h), parsed with time.ParseDuration.

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing:

  - MONGO_URI must be provided
  - ACCESS_TOKEN_SECRET must be provided
  - REFRESH_TOKEN_SECRET must be provided
  - SHARE_TOKEN_SECRET must be provided

Redis, Kafka, and SMTP are optional; main falls back to in-process
substitutes when they are unset.

# Example

	// In main.go
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	// ...
	mux := router.NewRouter(deps)
*/
package cliparse
