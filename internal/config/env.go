package config

import "os"

// applyLegacyEnv fills the PostgREST endpoint from the variable names used by the
// desktop frontend when nothing more specific was configured.
func applyLegacyEnv(cfg *Config) {
	if cfg.PostgREST.URL == "" {
		cfg.PostgREST.URL = firstEnv("SUPABASE_URL", "VITE_SUPABASE_URL")
	}
	if cfg.PostgREST.AnonKey == "" {
		cfg.PostgREST.AnonKey = firstEnv("SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY")
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
