package bootstrap

import (
	"context"
	"fmt"

	"facade_server/adapter/out/persistence"
	"facade_server/adapter/out/provider/gmail"
	"facade_server/config"
	"facade_server/core/port/out"
	"facade_server/core/service/label"
	"facade_server/core/service/mail"
	"facade_server/core/service/schedule"
	"facade_server/infra/database"
	"facade_server/pkg/httputil"
	"facade_server/pkg/logger"
	"facade_server/pkg/metrics"
	"facade_server/pkg/resilience"
	"facade_server/pkg/snowflake"

	"github.com/redis/go-redis/v9"
)

const latencyWindow = 256

type Dependencies struct {
	Config *config.Config
	Redis  *redis.Client // nil unless REDIS_URL is set

	Latency *metrics.Registry
	Guard   *resilience.Guard
	Gmail   *gmail.Client

	JobStore    out.JobStore
	Scheduler   *schedule.Scheduler
	Labels      *label.Reconciler
	Outbox      *mail.Outbox
	MailService *mail.Service
}

// NewDependencies authenticates against Gmail and wires the services. The
// scheduler is built but not started.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Gmail
	deps.Latency = metrics.NewRegistry(latencyWindow)
	deps.Guard = resilience.NewGuard(gmail.GuardConfig(cfg.CallTimeout), deps.Latency)

	client, err := gmail.New(ctx, gmail.Config{
		TokenFile: cfg.GmailTokenFile,
		User:      cfg.GmailUser,
		HTTP:      httputil.NewClient(httputil.GmailClientConfig(cfg.CallTimeout)),
	}, deps.Guard)
	if err != nil {
		return fail(err)
	}
	address, err := client.Profile(ctx)
	if err != nil {
		return fail(fmt.Errorf("gmail profile: %w", err))
	}
	deps.Gmail = client
	logger.Info("Gmail authenticated as %s", address)

	// Job store
	if cfg.RedisURL != "" {
		rdb, err := database.Open(ctx, cfg.RedisURL, database.SnapshotPool)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() {
			if err := rdb.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Redis")
			}
		})
		deps.Redis = rdb
		deps.JobStore = persistence.NewRedisJobStore(rdb, persistence.DefaultJobKey)
		logger.Info("Scheduled jobs are snapshotted to Redis")
	} else {
		deps.JobStore = persistence.NewMemoryJobStore()
	}

	// Services
	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fail(err)
	}

	deps.Outbox = mail.NewOutbox(client)
	deps.Labels = label.NewReconciler(client)

	schedCfg := schedule.DefaultConfig()
	schedCfg.Workers = cfg.SchedulerWorkers
	schedCfg.Retention = cfg.SchedulerRetention
	deps.Scheduler = schedule.New(deps.Outbox, deps.JobStore, ids, schedCfg, logger.Default().Zerolog())

	deps.MailService = mail.NewService(client, deps.Outbox, deps.Labels, deps.Scheduler, mail.ServiceConfig{
		SnoozeLabel:  cfg.SnoozeLabel,
		SendLocation: cfg.SendLocation,
	})

	return deps, cleanup, nil
}
