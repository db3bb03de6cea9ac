// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Tallyup API server.

Tallyup is a polling service with public and private polls, anonymous and
authenticated voting, per-poll chat, and a referral points system.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	MONGO_URI=mongodb://... ACCESS_TOKEN_SECRET=... go run main.go

Or with flags:

	go run main.go -p 3318 -m "mongodb://..."

# Configuration

Required settings:

  - MONGO_URI (-m): MongoDB connection string
  - ACCESS_TOKEN_SECRET (-access-secret): HMAC secret for access tokens
  - REFRESH_TOKEN_SECRET (-refresh-secret): HMAC secret for refresh tokens
  - SHARE_TOKEN_SECRET (-share-secret): HMAC secret for invite/share tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - REDIS_URL (-redis): Redis URL for distributed rate limiting
  - KAFKA_BROKERS (-kafka-brokers): Kafka brokers for the vote event stream
  - SMTP_ADDR (-smtp): SMTP server for verification and invite mail

When Redis, Kafka, or SMTP are not configured the server falls back to
in-process equivalents (memory limiter, no-op publisher, log mailer).

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (polls, votes, auth, chat, sharing)
  - router: Route definitions using Go 1.22+ routing
  - middleware: auth, rate limiting, CORS, logging, JSON helpers
  - models: Request/response and domain types
  - store: MongoDB persistence behind small interfaces
  - auth: JWT signing, password hashing, slug generation
  - event: Kafka vote event publishing
  - metrics: Prometheus instrumentation
  - mailer: SMTP delivery for verification codes and invites
  - db: Index creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
