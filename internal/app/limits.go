package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"groundwire/internal/httpapi"
	"groundwire/internal/ratelimit"
)

// Route names match the keys accepted in the sources file limits section.
const (
	routeSearch      = "search"
	routeIncidents   = "incidents"
	routeUpvotes     = "upvotes"
	routeSuggestions = "suggestions"
)

// defaultLimitConfigs returns the per-route limits applied when the sources
// file carries no overrides. Write paths fail closed, read paths fail open.
func defaultLimitConfigs() map[string]ratelimit.Config {
	return map[string]ratelimit.Config{
		routeSearch: {
			MaxRequests: 60,
			Window:      time.Minute,
			KeyPrefix:   routeSearch,
			FailMode:    ratelimit.FailOpen,
		},
		routeIncidents: {
			MaxRequests: 5,
			Window:      time.Hour,
			KeyPrefix:   routeIncidents,
			FailMode:    ratelimit.FailClosed,
		},
		routeUpvotes: {
			MaxRequests: 30,
			Window:      time.Minute,
			KeyPrefix:   routeUpvotes,
			FailMode:    ratelimit.FailOpen,
		},
		routeSuggestions: {
			MaxRequests: 3,
			Window:      time.Hour,
			KeyPrefix:   routeSuggestions,
			FailMode:    ratelimit.FailClosed,
		},
	}
}

// limitConfigs merges sources-file overrides onto the route defaults.
// Overrides for unknown routes are logged and dropped.
func (rt *runtime) limitConfigs() map[string]ratelimit.Config {
	configs := defaultLimitConfigs()
	if rt.fileCfg == nil {
		return configs
	}

	for route, override := range rt.fileCfg.Limits {
		name := strings.ToLower(strings.TrimSpace(route))
		cfg, ok := configs[name]
		if !ok {
			rt.logger.Warn().Str("route", route).Msg("ignoring limit override for unknown route")
			continue
		}
		if override.MaxRequests > 0 {
			cfg.MaxRequests = override.MaxRequests
		}
		if override.WindowSeconds > 0 {
			cfg.Window = override.Window()
		}
		switch strings.ToLower(strings.TrimSpace(override.FailMode)) {
		case "open":
			cfg.FailMode = ratelimit.FailOpen
		case "closed":
			cfg.FailMode = ratelimit.FailClosed
		}
		configs[name] = cfg
	}
	return configs
}

// limiters builds the per-route limiters: redis-backed sliding windows when
// REDIS_URL is set, in-process fixed windows otherwise.
func (rt *runtime) limiters() (httpapi.Limiters, error) {
	configs := rt.limitConfigs()

	if strings.TrimSpace(rt.cfg.RedisURL) == "" {
		rt.logger.Info().Msg("rate limiting on in-memory fixed windows")
		return httpapi.Limiters{
			Search:      ratelimit.NewMemory(configs[routeSearch]),
			Incidents:   ratelimit.NewMemory(configs[routeIncidents]),
			Upvotes:     ratelimit.NewMemory(configs[routeUpvotes]),
			Suggestions: ratelimit.NewMemory(configs[routeSuggestions]),
		}, nil
	}

	redisOpts, err := redis.ParseURL(rt.cfg.RedisURL)
	if err != nil {
		return httpapi.Limiters{}, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	rt.redisClient = client

	rt.logger.Info().Str("addr", redisOpts.Addr).Msg("rate limiting on redis sliding windows")
	return httpapi.Limiters{
		Search:      ratelimit.NewRedis(client, configs[routeSearch], rt.logger),
		Incidents:   ratelimit.NewRedis(client, configs[routeIncidents], rt.logger),
		Upvotes:     ratelimit.NewRedis(client, configs[routeUpvotes], rt.logger),
		Suggestions: ratelimit.NewRedis(client, configs[routeSuggestions], rt.logger),
	}, nil
}
