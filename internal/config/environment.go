package config

import (
	"os"
	"strings"
)

// Environment variable names used by earlier deployments of the game server
const (
	legacyMongoURI  = "MONGODB_URI"
	legacyPort      = "PORT"
	legacySocketURL = "NEXT_PUBLIC_SOCKET_URL"
	legacyAppURL    = "NEXT_PUBLIC_APP_URL"
)

// applyLegacyEnv overlays the older variable names when they are set
func applyLegacyEnv(cfg *Config) {
	if uri := getEnv(legacyMongoURI, ""); uri != "" {
		cfg.MongoDB.URI = uri
	}
	if port := getEnv(legacyPort, ""); port != "" {
		cfg.Server.Port = port
	}

	var origins []string
	origins = append(origins, splitList(getEnv(legacySocketURL, ""))...)
	origins = append(origins, splitList(getEnv(legacyAppURL, ""))...)
	if len(origins) > 0 {
		cfg.Server.AllowedOrigins = mergeUnique(cfg.Server.AllowedOrigins, origins)
	}
	cfg.Server.AllowedOrigins = mergeUnique(nil, flatten(cfg.Server.AllowedOrigins))
}

// getEnv retrieves an environment variable or returns a default value if not found
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}

// flatten splits entries that still carry comma separated values
func flatten(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, splitList(v)...)
	}
	return out
}

func mergeUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
