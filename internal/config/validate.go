package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// validModes are the CLI modes that carry validation rules.
var validModes = map[string]bool{
	"assess":   true,
	"generate": true,
	"serve":    true,
	"export":   true,
	"report":   true,
}

// Validate checks that the configuration is usable for the given mode.
// All problems are reported at once rather than one at a time.
func (c *Config) Validate(mode string) error {
	if !validModes[mode] {
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "assess", "generate", "serve":
		if c.Serper.Key == "" {
			problems = append(problems, "serper.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if mode == "assess" {
		switch c.Assess.EstimatePolicy {
		case "never", "empty_search", "parse_failure":
		default:
			problems = append(problems, "assess.estimate_policy must be never, empty_search, or parse_failure")
		}
		if c.Assess.ResultsPerFactor < 1 || c.Assess.ResultsPerFactor > 10 {
			problems = append(problems, "assess.results_per_factor must be between 1 and 10")
		}
	}

	if mode == "generate" {
		if c.Generate.MaxConcurrent < 1 || c.Generate.MaxConcurrent > 50 {
			problems = append(problems, "generate.max_concurrent must be between 1 and 50")
		}
		if c.Generate.RequestsPerSecond <= 0 {
			problems = append(problems, "generate.requests_per_second must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
