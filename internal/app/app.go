package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/config"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/prefs"
	"github.com/luke-gs/cadsync/internal/reminder"
	"github.com/luke-gs/cadsync/internal/session"
	"github.com/luke-gs/cadsync/internal/ui"
)

// Options configure the cadsync application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/cadsync/prefs.toml
	PollEvery  int    // seconds; zero uses the configured interval

	// Callsign and PatrolGroup override the configured values when set.
	Callsign    string
	PatrolGroup string
}

// Env is a loaded configuration with its logger, API client and session.
type Env struct {
	Config  config.Config
	Prefs   prefs.Prefs
	Log     *logrus.Logger
	Client  *cad.Client
	Session *session.Manager

	// Alerts receives reminders as they fire.
	Alerts <-chan reminder.Reminder

	logFile *os.File
}

// Open loads configuration and preferences and builds a session against the
// configured dispatch API.
func Open(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.Callsign); v != "" {
		cfg.Callsign = v
	}
	if v := strings.TrimSpace(opts.PatrolGroup); v != "" {
		cfg.PatrolGroup = v
	}
	if opts.PollEvery > 0 {
		cfg.PollSeconds = opts.PollEvery
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}

	log, logFile, err := logging.OpenFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	client, err := cad.NewClient(cfg.APIURL)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("init dispatch client: %w", err)
	}

	alerts := make(chan reminder.Reminder, 4)
	sess := session.New(session.Options{
		API:         client,
		OfficerID:   cfg.OfficerID,
		Callsign:    cfg.Callsign,
		PatrolGroup: cfg.PatrolGroup,
		Notifier:    alertNotifier(alerts, log),
		Log:         log,
	})

	log.WithFields(logrus.Fields{
		"api":          client.BaseURL().String(),
		"callsign":     cfg.Callsign,
		"patrol_group": cfg.PatrolGroup,
		"scope":        cfg.SyncScope,
	}).Info("session opened")

	return &Env{
		Config:  cfg,
		Prefs:   userPrefs,
		Log:     log,
		Client:  client,
		Session: sess,
		Alerts:  alerts,
		logFile: logFile,
	}, nil
}

// Close stops pending reminders and closes the log file.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	e.Session.Reminders().CancelAll()
	if e.logFile == nil {
		return nil
	}
	return e.logFile.Close()
}

// alertNotifier logs each reminder and forwards it to alerts without
// blocking. Reminders are dropped when nobody is reading.
func alertNotifier(alerts chan<- reminder.Reminder, log logrus.FieldLogger) reminder.Notifier {
	return reminder.NotifierFunc(func(r reminder.Reminder) {
		log.WithFields(logrus.Fields{"id": r.ID, "at": r.At}).Warn(r.Title + ": " + r.Body)
		select {
		case alerts <- r:
		default:
		}
	})
}

// Start performs the initial sync and launches background polling, the live
// feed and a manifest refresh. It returns once the initial sync finishes.
func (e *Env) Start(ctx context.Context) {
	sess := e.Session
	scope := e.Config.Scope()

	if _, err := sess.SyncAll(ctx); err != nil {
		e.Log.WithError(err).Warn("initial sync failed; polling will retry")
	}
	sess.StartPolling(ctx, scope, e.Config.PollInterval())

	if e.Config.LiveFeed {
		feed := cad.NewFeed(e.Client, e.Log)
		go func() {
			err := feed.Run(ctx, func(ev cad.FeedEvent) {
				e.Log.WithFields(logrus.Fields{"type": ev.Type, "callsign": ev.Callsign}).Debug("feed event")
				sess.Nudge()
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				e.Log.WithError(err).Warn("live feed stopped")
			}
		}()
	}

	go func() {
		n, err := sess.RefreshManifest(ctx)
		if err != nil {
			e.Log.WithError(err).Warn("manifest refresh failed")
			return
		}
		e.Log.WithField("items", n).Debug("manifest refreshed")
	}()
}

// Run boots the cadsync console until the operator quits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Open(opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	env.Start(ctx)

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	f := env.Prefs.Filter.ToFilter()
	err = ui.Run(ui.Options{
		Context:   ctx,
		Backend:   env.Session,
		ThemeName: env.Prefs.Theme,
		Filter:    &f,
		PrefsPath: prefsPath,
		Tick:      time.Second,
		Alerts:    env.Alerts,
		LogPath:   env.Config.LogFile,
		Log:       env.Log,
	})
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
