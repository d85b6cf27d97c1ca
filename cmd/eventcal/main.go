package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"eventcal/internal/config"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/prefs"
	"eventcal/internal/reminder"
	"eventcal/internal/store"
	"eventcal/internal/web"
)

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(flags.envFile); err != nil {
		appLog.Error("failed to read environment overrides", err, "env_file", flags.envFile)
		os.Exit(1)
	}
	// CLI --listen overrides both the file and the environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("eventcal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"events_file", conf.EventsFile,
		"ics_count", len(conf.ICS),
		"reminders", conf.Reminders.Enabled,
		"once", flags.once,
	)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := loadSeed(conf.EventsFile)
	events := store.New(seed)
	loader := &ics.Loader{
		Fetcher:  ics.NewFetcher(conf.CacheDir, nil),
		Sources:  conf.Sources(),
		Location: loc,
		Backfill: time.Duration(conf.BackfillDays) * 24 * time.Hour,
		Horizon:  time.Duration(conf.HorizonDays) * 24 * time.Hour,
	}

	if flags.once {
		refresh(ctx, loader, events, seed, conf.IncludeAllDay)
		appLog.Info("single refresh completed", "event_count", events.Len())
		return
	}

	userPrefs := prefs.New()

	var sched *reminder.Scheduler
	replan := func() {}
	if conf.Reminders.Enabled {
		sched = reminder.NewScheduler(reminder.LogNotifier{}, loc)
		replan = func() {
			plan := reminder.Plan(events.All(), userPrefs.InterestedIDs(), conf.ReminderOffsets(),
				time.Now().In(loc), conf.ReminderLookahead())
			sched.Reschedule(plan)
		}
		userPrefs.OnChange(func(c prefs.Change) {
			if c.Kind == prefs.KindInterested {
				replan()
			}
		})
	}

	refreshJob := func() {
		refresh(ctx, loader, events, seed, conf.IncludeAllDay)
		replan()
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(appLog.CronLogger()),
		cron.WithChain(cron.SkipIfStillRunning(appLog.CronLogger())),
	)
	if len(loader.Sources) > 0 {
		if _, err := scheduleRefresh(c, conf.RefreshCron, refreshJob); err != nil {
			appLog.Error("failed to schedule feed refresh", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
	}
	// Reminder lookahead windows slide forward even when nothing changes.
	if sched != nil {
		if _, err := c.AddFunc("@hourly", replan); err != nil {
			appLog.Error("failed to schedule reminder replan", err)
		}
	}
	c.Start()

	err = web.StartServer(ctx, conf, web.Deps{
		Events:    events,
		Prefs:     userPrefs,
		Reminders: sched,
	})
	if err != nil {
		appLog.Error("http server failed", err, "listen", conf.Listen)
	}

	<-c.Stop().Done()
	if sched != nil {
		<-sched.Stop().Done()
	}
	appLog.Info("eventcal exiting")
	if err != nil {
		os.Exit(1)
	}
}

// scheduleRefresh registers job on spec and starts one run right away. The
// first run goes through the entry's wrapped job, so the chain's
// SkipIfStillRunning also covers it.
func scheduleRefresh(c *cron.Cron, spec string, job func()) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return 0, err
	}
	go c.Entry(id).WrappedJob.Run()
	return id, nil
}

// loadSeed reads the seed event file. A missing file yields no events.
func loadSeed(path string) []model.Event {
	if path == "" {
		return nil
	}
	seed, err := store.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("events file not found, starting without seed events", "path", path)
		} else {
			appLog.Error("failed to load events file", err, "path", path)
		}
		return nil
	}
	return seed
}

// refresh reloads every feed and replaces the store contents. Seed events
// come first so their ids win over feed duplicates.
func refresh(ctx context.Context, loader *ics.Loader, events *store.Store, seed []model.Event, includeAllDay bool) {
	feed, errs := loader.Load(ctx)
	for _, err := range errs {
		appLog.Warn("feed refresh problem", "reason", err)
	}

	all := make([]model.Event, 0, len(seed)+len(feed))
	all = append(all, seed...)
	for _, ev := range feed {
		if ev.AllDay && !includeAllDay {
			continue
		}
		all = append(all, ev)
	}
	events.Replace(all)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./eventcal.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Path to an optional .env file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load seed events and feeds once, log a summary and exit")

	flag.Parse()

	return cfg
}
