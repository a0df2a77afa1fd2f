// Package app wires config, logging, storage, resets, the world and the
// gateway into one process with a supervised lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"worldgate/internal/announce"
	"worldgate/internal/config"
	"worldgate/internal/gateway"
	"worldgate/internal/observability/pprof"
	"worldgate/internal/resets"
	"worldgate/internal/runtime/supervisor"
	"worldgate/internal/storage"
	"worldgate/internal/world"
	logx "worldgate/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	tracker *resets.Tracker
	world   *world.World
	gw      *gateway.Service
	pprof   *pprof.Service

	tickInterval time.Duration
	resetsCfg    config.ResetsConfig
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	store, err := openStore(cfg.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	// Reset bookkeeping always has a store; without persistence configured
	// it falls back to in-memory and loses its anchors across restarts.
	trackerStore := resets.Store(store)
	if store == nil {
		trackerStore = storage.NewMemory()
	}
	tracker := resets.New(trackerStore, log.With(logx.String("comp", "resets")))

	wcfg, tick, err := worldConfig(cfg.World)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	sink := announce.NewLogSink(log.With(logx.String("comp", "announce")), 5)

	w := world.New(wcfg, world.Deps{
		Log:    log.With(logx.String("comp", "world")),
		Store:  worldStore(store),
		Sink:   sink,
		Resets: tracker,
	})

	a := &App{
		cfgPath:      cfgPath,
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		store:        store,
		tracker:      tracker,
		world:        w,
		tickInterval: tick,
		resetsCfg:    cfg.Resets,
	}

	if cfg.Gateway.Enabled {
		secret := cfg.Gateway.JWTSecret
		if secret == "" {
			secret = os.Getenv("WORLDGATE_JWT_SECRET")
		}
		a.gw = gateway.New(gateway.Config{
			Addr:      cfg.Gateway.Addr,
			JWTSecret: secret,
		}, w, log.With(logx.String("comp", "gateway")))
	}

	a.pprof = pprof.New(pprof.Config{
		Enabled: cfg.Debug.Enabled,
		Addr:    cfg.Debug.Addr,
		Token:   cfg.Debug.Token,
	}, log)

	return a, nil
}

func (a *App) World() *world.World { return a.world }

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := worldConfig(cfg.World); err != nil {
			return err
		}
		_, err := resetLocation(cfg.Resets)
		return err
	})

	if err := a.registerResets(a.sup.Context()); err != nil {
		return err
	}

	if a.gw != nil {
		a.sup.Go("gateway.serve", func(context.Context) error {
			return a.gw.Start()
		})
	}
	if a.pprof.Enabled() {
		a.sup.Go("pprof.serve", func(context.Context) error {
			return a.pprof.Start()
		})
	}

	a.sup.Go0("world.tick", func(c context.Context) { a.tickLoop(c) })

	// Hot reload fan-out. Only the world and logging sections apply live;
	// resets, storage and gateway changes need a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest revision.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.notifySystemd()

	a.log.Info("app started", logx.Duration("tick", a.tickInterval))
	return nil
}

// tickLoop drives the world at the configured frame rate. Deltas are wall
// clock, so a stalled frame is followed by one long Update, never a burst.
func (a *App) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.world.Halted():
			return
		case now := <-ticker.C:
			a.world.Update(now.Sub(prev))
			prev = now
		}
	}
}

func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	wcfg, tick, err := worldConfig(cfg.World)
	if err != nil {
		// validator should have rejected this revision already
		a.log.Warn("reload rejected", logx.Err(err))
		return
	}
	if tick != a.tickInterval {
		a.log.Warn("tick_interval change ignored (restart required)",
			logx.Duration("current", a.tickInterval),
			logx.Duration("requested", tick))
	}
	a.world.Post(func() { a.world.ApplyConfig(wcfg) })
	a.log.Info("config reloaded",
		logx.Int("player_limit", wcfg.PlayerLimit),
		logx.Duration("idle_timeout", wcfg.IdleTimeout))
}

// registerResets installs the calendar reset schedules. Fire callbacks run
// on the tick goroutine, so broadcasting from them is safe.
func (a *App) registerResets(ctx context.Context) error {
	rc := a.resetsCfg
	loc, err := resetLocation(rc)
	if err != nil {
		return err
	}
	now := time.Now()

	daily, err := resets.Daily(rc.DailyHour, loc)
	if err != nil {
		return err
	}
	weekly, err := resets.Weekly(rc.WeeklyHour, time.Weekday(rc.WeeklyDay), loc)
	if err != nil {
		return err
	}
	monthly, err := resets.Monthly(rc.MonthlyHour, loc)
	if err != nil {
		return err
	}

	fire := func(name string) func(time.Time) {
		return func(now time.Time) {
			a.log.Info("content reset", logx.String("reset", name))
		}
	}
	if err := a.tracker.Register(ctx, now, "reset.daily", daily, fire("daily")); err != nil {
		return err
	}
	if err := a.tracker.Register(ctx, now, "reset.weekly", weekly, fire("weekly")); err != nil {
		return err
	}
	if err := a.tracker.Register(ctx, now, "reset.monthly", monthly, fire("monthly")); err != nil {
		return err
	}

	if rc.CurrencyIntervalDays > 0 {
		currency, err := resets.EveryDays(rc.CurrencyIntervalDays, rc.CurrencyHour, loc)
		if err != nil {
			return err
		}
		if err := a.tracker.Register(ctx, now, "reset.currency", currency, fire("currency")); err != nil {
			return err
		}
	}
	return nil
}

// notifySystemd reports readiness and arms the watchdog keepalive when the
// process runs under systemd. A no-op everywhere else.
func (a *App) notifySystemd() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.world.Post(func() {
		a.world.AddMaintenance("systemd-watchdog", interval/2, func(time.Time) {
			go func() { _, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog) }()
		})
	})
	a.log.Info("systemd watchdog armed", logx.Duration("interval", interval))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// Bounded shutdown steps so one component can't stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	if a.gw != nil {
		step("gateway", 2*time.Second, a.gw.Stop)
	}
	if a.pprof.Enabled() {
		step("pprof", time.Second, a.pprof.Stop)
	}
	step("supervisor", 3*time.Second, a.sup.Wait)
	if a.store != nil {
		step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	}

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// ---- config mapping ----

func worldConfig(wc config.WorldConfig) (world.Config, time.Duration, error) {
	tick, err := config.ParseDurationOrDefault("world.tick_interval", wc.TickInterval, 50*time.Millisecond)
	if err != nil {
		return world.Config{}, 0, err
	}
	idle, err := config.ParseDurationField("world.idle_timeout", wc.IdleTimeout)
	if err != nil {
		return world.Config{}, 0, err
	}
	grace, err := config.ParseDurationField("world.grace_window", wc.GraceWindow)
	if err != nil {
		return world.Config{}, 0, err
	}
	return world.Config{
		PlayerLimit: wc.PlayerLimit,
		IdleTimeout: idle,
		GraceWindow: grace,
	}, tick, nil
}

func resetLocation(rc config.ResetsConfig) (*time.Location, error) {
	if rc.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(rc.Timezone)
	if err != nil {
		return nil, fmt.Errorf("resets.timezone: invalid %q: %w", rc.Timezone, err)
	}
	return loc, nil
}

func openStore(sc *config.StorageConfig, log logx.Logger) (storage.Store, error) {
	if sc == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		Addr:        sc.Addr,
		Password:    sc.Password,
		BusyTimeout: busy,
	}, log)
}

// worldStore narrows the optional storage handle; a nil Store must become a
// nil interface, not a typed nil.
func worldStore(s storage.Store) world.KVStore {
	if s == nil {
		return nil
	}
	return s
}
