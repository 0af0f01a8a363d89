package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if err := validatePolicyConfig(cfg.Policy); err != nil {
		return err
	}

	if cfg.Moderation.Severity < 0 || cfg.Moderation.Severity > 1 {
		return fmt.Errorf("moderation.severity must be in [0,1], got %v", cfg.Moderation.Severity)
	}

	if err := validateSearchConfig(cfg.Search); err != nil {
		return err
	}

	if err := validateArchiveConfig(cfg.Archive); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validatePolicyConfig(p PolicyConfig) error {
	if strings.TrimSpace(p.Version) == "" {
		return errors.New("policy.version must be set")
	}
	for source, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("policy.weights[%q] must be >= 0, got %v", source, w)
		}
	}
	if p.BlockThreshold <= 0 {
		return errors.New("policy.block_threshold must be positive")
	}
	if p.ReviewThreshold <= 0 {
		return errors.New("policy.review_threshold must be positive")
	}
	if p.ReviewThreshold >= p.BlockThreshold {
		return fmt.Errorf("policy.review_threshold (%v) must be below block_threshold (%v)",
			p.ReviewThreshold, p.BlockThreshold)
	}
	return nil
}

func validateSearchConfig(s SearchConfig) error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"search.serp_endpoint", s.SerpEndpoint},
		{"search.vision_endpoint", s.VisionEndpoint},
	} {
		u, err := url.Parse(field.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid URL", field.name)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must be http or https", field.name)
		}
	}
	if s.PageSize > 10 {
		return fmt.Errorf("search.page_size cannot exceed 10 (backend page limit), got %d", s.PageSize)
	}
	if s.MaxCandidates > 50 {
		return fmt.Errorf("search.max_candidates cannot exceed 50, got %d", s.MaxCandidates)
	}
	return nil
}

func validateArchiveConfig(a ArchiveConfig) error {
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("archive sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("archive sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("archive sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("archive sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("archive sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
