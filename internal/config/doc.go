// Package config handles configuration loading for hubd.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	identity:
//	  signing_secret: "${HUB_IDENTITY_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	admin:
//	  session_ttl: "24h"
//
// # Configuration Sections
//
// Server and database:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  base_url: "https://hub.example.com"
//	database:
//	  path: "./data/hub.db"
//
// Super-admin bootstrap identity (password provisioned as a bcrypt hash):
//
//	admin:
//	  email: "owner@example.com"
//	  password_hash: "${HUB_ADMIN_PASSWORD_HASH}"
//	  notify_address: "owner@example.com"
//	  session_ttl: "24h"
//
// Identity provider selection (chosen once at startup):
//
//	identity:
//	  provider: "jwt"        # or "mock"
//	  signing_secret: "${HUB_IDENTITY_SECRET}"
//	  webhook_secret: "${HUB_WEBHOOK_SECRET}"
//
// Mail delivery:
//
//	mail:
//	  sender: "api"          # or "log"
//	  api_url: "https://api.mailjet.com/v3.1/send"
//	  api_key: "${HUB_MAIL_KEY}"
//	  api_secret: "${HUB_MAIL_SECRET}"
//	  from_email: "noreply@example.com"
package config
