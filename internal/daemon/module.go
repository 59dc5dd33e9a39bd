package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/api"
	"github.com/Umareee/messenger-crm/internal/bridge"
	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/campaign"
	"github.com/Umareee/messenger-crm/internal/lock"
	"github.com/Umareee/messenger-crm/internal/logging"
	"github.com/Umareee/messenger-crm/internal/profile"
	"github.com/Umareee/messenger-crm/internal/store"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	ListenAddr  string
	AccountID   string
	JWTSecret   string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideBridgeClient,
			provideProber,
			provideSyncer,
			provideDispatcher,
			provideReconciler,
			provideScheduler,
			provideListener,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBridgeClient(p Params) *bridge.Client {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.BridgeSocketPath(p.ProfileName)
	}
	return bridge.NewClient(socketPath)
}

func provideProber(client *bridge.Client, b *bus.Bus, logger *zap.Logger) *bridge.Prober {
	return bridge.NewProber(client, b, logger, bridge.DefaultProbeInterval)
}

func provideSyncer(p Params, db *store.DB, client *bridge.Client, prober *bridge.Prober, b *bus.Bus, logger *zap.Logger) *bridge.Syncer {
	return bridge.NewSyncer(db, client, prober, b, logger, p.AccountID)
}

func provideDispatcher(client *bridge.Client, prober *bridge.Prober, logger *zap.Logger) *bridge.Dispatcher {
	return bridge.NewDispatcher(client, prober, logger)
}

func provideReconciler(p Params, db *store.DB, dispatcher *bridge.Dispatcher, b *bus.Bus, logger *zap.Logger) *campaign.Reconciler {
	return campaign.NewReconciler(db, dispatcher, b, logger, p.AccountID, bridge.DefaultPollInterval)
}

func provideScheduler(p Params, db *store.DB, reconciler *campaign.Reconciler, logger *zap.Logger) *campaign.Scheduler {
	return campaign.NewScheduler(db, reconciler, logger, p.AccountID, campaign.DefaultSchedulerInterval)
}

func provideListener(p Params, db *store.DB, reconciler *campaign.Reconciler, logger *zap.Logger) *bridge.Listener {
	return bridge.NewListener(db, reconciler, logger, p.AccountID)
}

func provideServer(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger,
	reconciler *campaign.Reconciler, prober *bridge.Prober, syncer *bridge.Syncer,
	listener *bridge.Listener) (*api.Server, error) {

	token, err := EnsureBridgeToken(p.ProfileName)
	if err != nil {
		return nil, err
	}
	auth := api.AuthConfig{
		BridgeToken: token,
		JWTSecret:   p.JWTSecret,
		AccountID:   p.AccountID,
	}
	return api.NewServer(db, b, logger, reconciler, prober, syncer, listener, auth, p.AccountID), nil
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *api.Server, lk *lock.Lock,
	prober *bridge.Prober, syncer *bridge.Syncer, reconciler *campaign.Reconciler,
	scheduler *campaign.Scheduler, logger *zap.Logger) {

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			prober.Start(context.Background())
			syncer.Start(context.Background())
			scheduler.Start(context.Background())

			go func() {
				logger.Info("api server starting", zap.String("addr", p.ListenAddr))
				if err := srv.Listen(p.ListenAddr); err != nil {
					logger.Error("api server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			syncer.Stop()
			prober.Stop()
			reconciler.StopAll()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("error shutting down api server", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
