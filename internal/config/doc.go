// Package config handles configuration loading for aplmint.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  token: "${TELEGRAM_BOT_TOKEN}"
//	openrouter:
//	  api_key: "${OPENROUTER_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Completion provider:
//
//	openrouter:
//	  api_key: "${OPENROUTER_API_KEY}"
//	  referer: "https://github.com/heliomancer/aplmint"
//	  title: "APLMinT Bot"
//	  timeout: "30s"
//
// Quota:
//
//	quota:
//	  daily_limit: 10
//
// Models (ordered; the first entry is the default):
//
//	models:
//	  - name: "DeepSeek"
//	    id: "deepseek/deepseek-chat:free"
//	  - name: "Gemini"
//	    id: "google/gemini-2.0-flash-exp:free"
//
// Database:
//
//	database:
//	  path: "/var/lib/aplmint/aplmint.db"
//
// Health/metrics HTTP server:
//
//	server:
//	  http_addr: "127.0.0.1:8081"
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
