package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pitchside/playbook/internal/autosave"
	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/internal/dispatcher"
	"github.com/pitchside/playbook/internal/handlers"
	"github.com/pitchside/playbook/internal/logging"
	intOtel "github.com/pitchside/playbook/internal/otel"
	"github.com/pitchside/playbook/internal/parser"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/internal/store"
	"github.com/pitchside/playbook/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// editorRef is what log records are tagged with. It is refreshed after every
// dispatched command so the log handler never takes the store lock.
type editorRef struct {
	projectID string
	frame     int
}

type app struct {
	out          io.Writer
	logOut       io.Writer
	logger       *slog.Logger
	logs         *logging.SlogManager
	telemetry    *intOtel.Provider
	tickInterval time.Duration

	store      *store.Store
	dispatcher *dispatcher.Dispatcher
	handlers   *handlers.Service
	backend    storage.Backend
	autosaver  *autosave.Autosaver

	ref     atomic.Pointer[editorRef]
	closers []io.Closer
}

// newApp wires logging, telemetry, the store and the command dispatcher from
// the loaded configuration. The storage backend and autosave are created on
// first use.
func newApp(out io.Writer, sessionStart time.Time) (*app, error) {
	a := &app{out: out}
	a.ref.Store(&editorRef{})

	logLevel := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")

	var logOut io.Writer = os.Stderr
	if f, err := logging.OpenLogFile(logsDir, AppName, sessionStart); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file, logging to stderr: %v\n", err)
	} else {
		logOut = f
		a.closers = append(a.closers, f)
	}

	otelCfg := config.GetOTelConfig()
	telemetryCfg := intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
	}
	if otelCfg.Enabled {
		f, err := logging.OpenLogFile(logsDir, AppName+".otel", sessionStart)
		if err != nil {
			return nil, err
		}
		telemetryCfg.LogWriter = f
		a.closers = append(a.closers, f)
	}
	provider, err := intOtel.New(telemetryCfg)
	if err != nil {
		a.closeFiles()
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	a.telemetry = provider

	a.logs = logging.NewSlogManager(AppName)
	a.logs.SetContextProvider(logging.EditorContext(func() (string, int) {
		ref := a.ref.Load()
		return ref.projectID, ref.frame
	}))
	a.logOut = logOut
	a.logs.Setup(logOut, logLevel, provider.LoggerProvider())
	a.logger = a.logs.Logger()

	editorCfg := config.GetEditorConfig()
	a.tickInterval = config.GetPlaybackConfig().TickInterval

	sport, ok := core.ParseSport(editorCfg.DefaultSport)
	if !ok {
		a.logger.Warn("Unknown default sport in config, using default", "sport", editorCfg.DefaultSport)
	}
	settings := core.DefaultSettings()
	if editorCfg.DefaultDuration > 0 {
		settings.DefaultTransitionDuration = editorCfg.DefaultDuration
	}

	a.store = store.New(
		store.WithLogger(a.logger),
		store.WithParser(parser.NewService(a.logger, parser.WithMaxBytes(editorCfg.MaxProjectBytes))),
		store.WithDefaults(sport, settings),
	)

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerologFor(logOut, logLevel, "dispatcher")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.dispatcher = d
	a.handlers = handlers.NewService(handlers.Dependencies{
		Store:  a.store,
		Logger: a.logger,
	})
	a.handlers.Register(a.dispatcher)
	a.refresh()

	return a, nil
}

// zerologFor builds a zerolog logger for the components that log through it.
func zerologFor(w io.Writer, level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", AppName).
		Str("component", component).
		Logger()
}

// openBackend creates and initializes the configured storage backend.
func (a *app) openBackend() (storage.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	backend, err := createStorageBackend(
		config.GetStorageConfig(),
		config.GetEditorConfig().MaxProjectBytes,
		a.logger,
		zerologFor(a.logOut, viper.GetString("logLevel"), "database"),
	)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.backend = backend
	a.handlers.SetBackend(backend)
	return backend, nil
}

// openAutosave indexes the autosave directory. It returns nil when
// autosave.enabled is off.
func (a *app) openAutosave() (*autosave.Autosaver, error) {
	if a.autosaver != nil {
		return a.autosaver, nil
	}
	cfg := config.GetAutosaveConfig()
	if !cfg.Enabled {
		return nil, nil
	}
	slots, err := autosave.NewDirSlots(cfg.Dir, cfg.QuotaBytes)
	if err != nil {
		return nil, err
	}
	saver, err := autosave.New(a.store, slots, cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.autosaver = saver
	return saver, nil
}

// startAutosave snapshots the open project in the background while
// autosave.enabled is set.
func (a *app) startAutosave() error {
	saver, err := a.openAutosave()
	if err != nil || saver == nil {
		return err
	}
	saver.Start()
	return nil
}

// restoreAutosave replaces the open project with its newest autosave
// snapshot, if there is one. It reports whether a snapshot was loaded.
func (a *app) restoreAutosave() (parser.Result, bool, error) {
	saver, err := a.openAutosave()
	if err != nil {
		return parser.Result{}, false, err
	}
	if saver == nil {
		return parser.Result{}, false, errors.New("cannot restore: autosave is disabled")
	}

	id := a.store.Project().ID
	raw, err := saver.Latest(id)
	if errors.Is(err, autosave.ErrSlotNotFound) {
		a.logger.Info("no autosave snapshot to restore", "projectId", id)
		return parser.Result{}, false, nil
	}
	if err != nil {
		return parser.Result{}, false, fmt.Errorf("failed to read autosave snapshot: %w", err)
	}

	var res parser.Result
	if err := a.dispatch(handlers.CmdProjectLoad, json.RawMessage(raw), &res); err != nil {
		return res, false, fmt.Errorf("autosave snapshot rejected: %w", err)
	}
	a.logger.Info("restored autosave snapshot", "projectId", id, "updatedAt", a.store.Project().UpdatedAt)
	return res, true, nil
}

// dispatch runs one editor command and decodes its result into out, when
// out is non-nil.
func (a *app) dispatch(command string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("%s: encoding arguments: %w", command, err)
		}
		raw = b
	}

	result, err := a.dispatcher.Dispatch(dispatcher.Event{Command: command, Args: raw})
	a.refresh()
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if r, ok := result.(json.RawMessage); ok {
		return json.Unmarshal(r, out)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: encoding result: %w", command, err)
	}
	return json.Unmarshal(b, out)
}

func (a *app) refresh() {
	st := a.store.State()
	a.ref.Store(&editorRef{projectID: st.ProjectID, frame: st.CurrentFrameIndex})
}

// printJSON writes v to the app's output, indented.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Close stops autosave, closes the backend and flushes logs. It is safe to
// call more than once.
func (a *app) Close() error {
	var errs []error
	if a.autosaver != nil {
		errs = append(errs, a.autosaver.Stop())
		a.autosaver = nil
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
		a.backend = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.logs != nil {
		errs = append(errs, a.logs.Flush(ctx))
		a.logs = nil
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
		a.telemetry = nil
	}
	a.closeFiles()
	return errors.Join(errs...)
}

func (a *app) closeFiles() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}
