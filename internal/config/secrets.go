package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by "***". Use this when logging the active configuration so secrets are
// never exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Oracle.Token)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.AdminAPIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}

	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
