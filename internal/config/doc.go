// Package config provides configuration loading for the budget analysis service.
//
// # Configuration Sources
//
// Configuration is layered in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. A YAML file: $BUDGET_CONFIG_FILE, ./config.yaml or ./configs/config.yaml
//	3. Environment variables
//
// # Environment Variables
//
// Variables follow the pattern BUDGET_<SECTION>_<FIELD>:
//
//	BUDGET_SERVER_PORT=8000
//	BUDGET_JOBS_WORKERS=2
//	BUDGET_JOBS_STORE=sqlite
//	BUDGET_LOGGING_LEVEL=debug
//	BUDGET_TELEMETRY_TRACE_EXPORTER=stdout
//
// Model-provider credentials are also read from the conventional unprefixed
// OPENAI_API_KEY, OPENAI_MODEL, ANTHROPIC_API_KEY and ANTHROPIC_MODEL.
//
// # Example File
//
//	server:
//	  port: 8000
//	jobs:
//	  workers: 2
//	  store: sqlite
//	  sqlite_path: data/jobs.db
//	  retention: 48h
//	logging:
//	  level: debug
//	  output: both
package config
