package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"content-radar/internal/aiscore"
	"content-radar/internal/analytics"
	"content-radar/internal/api"
	"content-radar/internal/auth"
	"content-radar/internal/expansion"
	"content-radar/internal/insights"
	"content-radar/internal/linking"
	"content-radar/internal/model"
	"content-radar/internal/notifier"
	"content-radar/internal/scheduler"
	"content-radar/internal/seo"
	"content-radar/internal/spam"
	"content-radar/internal/storage"
	"content-radar/internal/subscription"
	"content-radar/internal/textmetrics"
)

// AppConfig is the top-level yaml configuration.
type AppConfig struct {
	Server       ServerConfig         `yaml:"server"`
	Database     DatabaseConfig       `yaml:"database"`
	Site         SiteConfig           `yaml:"site"`
	Spam         SpamConfig           `yaml:"spam"`
	AI           aiscore.Config       `yaml:"ai"`
	Expansion    expansion.Config     `yaml:"expansion"`
	Analytics    analytics.Config     `yaml:"analytics"`
	Scheduler    scheduler.Config     `yaml:"scheduler"`
	Email        notifier.EmailConfig `yaml:"email"`
	Digest       DigestConfig         `yaml:"digest"`
	Subscription subscription.Config  `yaml:"subscription"`
	Auth         auth.Config          `yaml:"auth"`
	Admin        AdminConfig          `yaml:"admin"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SiteConfig struct {
	Domain string `yaml:"domain"`
	URL    string `yaml:"url"`
}

type SpamConfig struct {
	Keywords    []string `yaml:"keywords"`
	Threshold   float64  `yaml:"threshold"`
	LimitWindow string   `yaml:"limit_window"`
	LimitMax    int      `yaml:"limit_max"`
}

type DigestConfig struct {
	Interval string `yaml:"interval"`
}

// AdminConfig seeds the first dashboard account on startup.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Printf("load config error: %v", err)
		return
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "content.db"
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		log.Printf("init store error: %v", err)
		return
	}
	defer store.Close()

	metrics := textmetrics.New(textmetrics.Config{SiteDomain: cfg.Site.Domain})
	scorer := aiscore.NewScorer(cfg.AI)
	expander := expansion.NewAnalyzer(cfg.Expansion)
	linker := linking.NewEngine()
	seoAnalyzer := seo.NewAnalyzer(metrics)

	classifier := spam.NewClassifier(spam.ClassifierConfig{Keywords: cfg.Spam.Keywords})
	limiter := spam.NewRateLimiter(store, spam.LimiterConfig{
		Window: parseDuration(cfg.Spam.LimitWindow),
		Max:    cfg.Spam.LimitMax,
	})
	comments := spam.NewService(store, classifier, limiter, buildAlerter(cfg.Email), spam.ServiceConfig{
		SpamThreshold: cfg.Spam.Threshold,
	})

	insightsSvc := insights.NewService(store, metrics, scorer, expander, linker)
	subsSvc := subscription.NewService(store, cfg.Subscription)
	authSvc := auth.NewService(store, cfg.Auth)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seedAdmin(ctx, store, cfg.Admin); err != nil {
		log.Printf("seed admin error: %v", err)
		return
	}

	deps := api.Deps{
		Store:         store,
		Comments:      comments,
		Subscriptions: subsSvc,
		Auth:          authSvc,
		Insights:      insightsSvc,
		Metrics:       metrics,
		Scorer:        scorer,
		SEO:           seoAnalyzer,
	}

	if cfg.Analytics.BaseURL != "" {
		client := analytics.NewClient(cfg.Analytics, &http.Client{Timeout: 15 * time.Second})
		sched := scheduler.NewScheduler(client, store, cfg.Scheduler)
		deps.Scheduler = sched
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("scheduler stopped: %v", err)
			}
		}()
	} else {
		log.Printf("analytics refresh disabled: missing base_url")
	}

	if interval := parseDuration(cfg.Digest.Interval); interval > 0 && cfg.Email.Host != "" {
		dig := notifier.NewDigestNotifier(store, cfg.Email, nil, cfg.Site.URL)
		go digestLoop(ctx, store, dig, interval)
	}

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: api.NewHandler(deps)}

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func loadConfig() (AppConfig, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func buildAlerter(cfg notifier.EmailConfig) spam.Alerter {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" || len(cfg.To) == 0 {
		log.Printf("email alerts disabled: missing host/port/from/to")
		return notifier.NewLogAlerter(nil)
	}
	return notifier.NewEmailAlerter(cfg, nil)
}

// seedAdmin creates the configured dashboard account if it does not exist.
func seedAdmin(ctx context.Context, store *storage.Store, cfg AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}
	_, err := store.GetUserByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return store.CreateUser(ctx, &model.User{
		Email:        cfg.Email,
		PasswordHash: auth.HashPassword(cfg.Password),
		Roles:        []string{"admin"},
	})
}

// digestLoop mails subscribers the posts published since the previous tick.
func digestLoop(ctx context.Context, store *storage.Store, dig *notifier.DigestNotifier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			posts, err := store.ListPosts(ctx, storage.PostQuery{Status: model.PostStatusPublished})
			if err != nil {
				log.Printf("digest list posts error: %v", err)
				continue
			}
			fresh := make([]model.Post, 0, len(posts))
			for _, p := range posts {
				if p.PublishedAt.After(last) {
					fresh = append(fresh, p)
				}
			}
			if len(fresh) > 0 {
				if err := dig.Notify(ctx, fresh); err != nil {
					log.Printf("digest send error: %v", err)
				}
			}
			last = now
		}
	}
}
