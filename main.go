// go_scenes is a character scene extraction pipeline.
//
// Scrapes TV-show transcript sources for configured fictional characters,
// extracts candidate scenes heuristically, and persists them deduplicated
// in SQLite. Fetching goes through a stealth client with proxy rotation
// and optional captcha solving.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_scenes/internal/engine"
	"github.com/anatolykoptev/go_scenes/internal/engine/captcha"
	"github.com/anatolykoptev/go_scenes/internal/engine/proxypool"
	"github.com/anatolykoptev/go_scenes/internal/engine/scenes"
	"github.com/anatolykoptev/go_scenes/internal/engine/sources"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "go_scenes",
		Short:         "Extract character scenes from TV-show transcript sites",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(extractCmd(), exportCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig() engine.Config {
	return engine.Config{
		FetchTimeout: env.Duration("FETCH_TIMEOUT", 20*time.Second),
		MinBodyBytes: env.Int("MIN_BODY_BYTES", 2048),
		JitterMin:    env.Duration("JITTER_MIN", 500*time.Millisecond),
		JitterMax:    env.Duration("JITTER_MAX", 2500*time.Millisecond),

		ProxyURLs:          env.List("PROXY_URLS", ""),
		ProxyProviderURL:   env.Str("PROXY_PROVIDER_URL", ""),
		ProxyFailThreshold: env.Int("PROXY_FAIL_THRESHOLD", 3),
		ProxyCooldownBase:  env.Duration("PROXY_COOLDOWN_BASE", 30*time.Second),
		ProxyCooldownMax:   env.Duration("PROXY_COOLDOWN_MAX", 15*time.Minute),

		CaptchaAPIKey:  env.Str("CAPTCHA_API_KEY", ""),
		CaptchaAPIBase: env.Str("CAPTCHA_API_BASE", captcha.DefaultAPIBase),

		RedisURL:        env.Str("REDIS_URL", ""),
		CacheTTL:        env.Duration("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries: env.Int("CACHE_MAX_ENTRIES", 1000),

		Workers:              env.Int("WORKERS", 4),
		RetryBudget:          env.Int("RETRY_BUDGET", 2),
		MaxEpisodesPerSource: env.Int("MAX_EPISODES_PER_SOURCE", 0),

		DatabasePath: env.Str("DATABASE_PATH", "scenes.db"),
	}
}

// buildFetcher assembles the stealth client: proxy pool (static list plus
// optional provider endpoint), captcha solver, page cache.
func buildFetcher(ctx context.Context, cfg engine.Config) *engine.Fetcher {
	addrs := proxypool.ParseAddressList(strings.Join(cfg.ProxyURLs, "\n"))
	if cfg.ProxyProviderURL != "" {
		more, err := proxypool.LoadFromProvider(ctx, cfg.ProxyProviderURL)
		if err != nil {
			slog.Warn("proxy provider unavailable, continuing with static list", slog.Any("error", err))
		} else {
			addrs = append(addrs, more...)
		}
	}
	pool := proxypool.New(proxypool.Config{
		FailThreshold: cfg.ProxyFailThreshold,
		CooldownBase:  cfg.ProxyCooldownBase,
		CooldownMax:   cfg.ProxyCooldownMax,
	}, addrs)
	if pool.Size() > 0 {
		slog.Info("proxy pool initialized", slog.Int("proxies", pool.Size()))
	} else {
		slog.Info("no proxies configured, fetching directly")
	}

	var solver engine.ChallengeSolver
	if c := captcha.New(cfg.CaptchaAPIKey, cfg.CaptchaAPIBase); c != nil {
		solver = c
		slog.Info("captcha solver ready")
	}

	cache := engine.NewPageCache(cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries,
		env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute))

	return engine.NewFetcher(cfg, pool, solver, cache)
}

func extractCmd() *cobra.Command {
	var (
		characterKey string
		all          bool
		show         string
		testRun      bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Fetch sources and extract scenes into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if testRun {
				// Smoke-run: one worker, a couple of episodes per source.
				cfg.Workers = 1
				cfg.MaxEpisodesPerSource = 2
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			catalog := scenes.NewCatalog(scenes.DefaultCharacters(), scenes.DefaultSources())

			chars, err := resolveTargets(catalog, characterKey, show, all, testRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := scenes.OpenStore(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			fetcher := buildFetcher(ctx, cfg)
			extractor := scenes.NewExtractor(sources.Registry())
			orch := scenes.NewOrchestrator(fetcher, store, catalog, extractor, cfg)

			slog.Info("starting extraction",
				slog.Int("characters", len(chars)),
				slog.Int("workers", cfg.Workers),
			)
			report := orch.Run(ctx, chars)
			report.Log()
			logMetrics()

			// Partial failures are reported, not fatal.
			return nil
		},
	}

	cmd.Flags().StringVar(&characterKey, "character", "", "character key to extract (see catalog)")
	cmd.Flags().BoolVar(&all, "all", false, "extract every configured character")
	cmd.Flags().StringVar(&show, "show", "", "override the character's show slug")
	cmd.Flags().BoolVar(&testRun, "test", false, "smoke run: single worker, two episodes per source")
	return cmd
}

// testCharacterKey is the pair a bare `extract --test` runs against.
const testCharacterKey = "tywin_lannister"

// resolveTargets picks the extraction targets from the CLI flags. --test
// without an explicit selection falls back to the smoke-test pair.
func resolveTargets(catalog *scenes.Catalog, characterKey, show string, all, testRun bool) ([]scenes.Character, error) {
	if characterKey == "" && !all && testRun {
		characterKey = testCharacterKey
	}
	switch {
	case all:
		return catalog.Characters(), nil
	case characterKey != "":
		ch, ok := catalog.Character(characterKey)
		if !ok {
			return nil, fmt.Errorf("unknown character %q (known: %s)", characterKey, strings.Join(knownKeys(catalog), ", "))
		}
		if show != "" {
			ch = ch.WithShow(show)
		}
		return []scenes.Character{ch}, nil
	default:
		return nil, fmt.Errorf("either --character or --all is required")
	}
}

func exportCmd() *cobra.Command {
	var (
		characterKey string
		out          string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored scenes as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := scenes.OpenStore(env.Str("DATABASE_PATH", "scenes.db"))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			n, err := store.ExportJSON(cmd.Context(), out, characterKey)
			if err != nil {
				return err
			}
			slog.Info("export complete", slog.String("path", out), slog.Int("scenes", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&characterKey, "character", "", "restrict export to one character")
	cmd.Flags().StringVar(&out, "out", "scenes.json", "output file path")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-character scene counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := scenes.OpenStore(env.Str("DATABASE_PATH", "scenes.db"))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			counts, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%-24s %d\n", k, counts[k])
			}
			return nil
		},
	}
}

func knownKeys(c *scenes.Catalog) []string {
	chars := c.Characters()
	keys := make([]string, 0, len(chars))
	for _, ch := range chars {
		keys = append(keys, ch.Key)
	}
	sort.Strings(keys)
	return keys
}

func logMetrics() {
	m := engine.GetMetrics()
	slog.Info("fetch metrics",
		slog.Int64("requests", m["fetch_requests"]),
		slog.Int64("errors", m["fetch_errors"]),
		slog.Int64("challenges", m["challenges"]),
		slog.Int64("challenges_solved", m["challenges_solved"]),
		slog.Int64("blocked", m["blocked"]),
		slog.Int64("cache_hits", m["cache_hits"]),
		slog.Int64("cache_misses", m["cache_misses"]),
	)
}
