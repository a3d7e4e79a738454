package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Lending.PrimaryAPIKey)
	redact(&out.Lending.PrimaryAPISecret)
	redact(&out.Lending.FallbackAPIKey)
	redact(&out.Lending.FallbackAPISecret)
	redact(&out.Oracle.APIKey)
	redact(&out.Oracle.APISecret)
	redact(&out.Keys.PrivateKey)
	redact(&out.Keys.KeyPassword)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Venues != nil {
		out.Venues = make([]VenueConfig, len(cfg.Venues))
		copy(out.Venues, cfg.Venues)
		for i := range out.Venues {
			redact(&out.Venues[i].APIKey)
			redact(&out.Venues[i].APISecret)
		}
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Pool.CollateralFeeds != nil {
		out.Pool.CollateralFeeds = make(map[string]string, len(cfg.Pool.CollateralFeeds))
		for k, v := range cfg.Pool.CollateralFeeds {
			out.Pool.CollateralFeeds[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
