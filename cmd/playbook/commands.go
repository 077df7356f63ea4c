package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pitchside/playbook/internal/handlers"
	"github.com/pitchside/playbook/internal/hydrate"
	"github.com/pitchside/playbook/internal/parser"
	"github.com/pitchside/playbook/internal/playback"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/internal/store"
	"github.com/pitchside/playbook/pkg/core"
	"golang.org/x/sync/errgroup"
)

func (a *app) runCommand(ctx context.Context, name string, args []string, opts options) error {
	need := map[string]int{
		"new": 0, "list": 0,
		"hydrate": 1, "load": 1, "play": 1, "save": 1, "open": 1, "share": 1, "script": 1,
	}
	n, ok := need[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if len(args) != n {
		return fmt.Errorf("%s takes %d argument(s), got %d", name, n, len(args))
	}

	switch name {
	case "new":
		var p core.Project
		if err := a.dispatch(handlers.CmdProjectNew, nil, &p); err != nil {
			return err
		}
		return a.printJSON(p)

	case "hydrate":
		return a.hydrateFile(args[0])

	case "load":
		res, err := a.loadFile(args[0])
		if err != nil {
			return err
		}
		restored := false
		if opts.restore {
			var snap parser.Result
			if snap, restored, err = a.restoreAutosave(); err != nil {
				return err
			}
			res.Warnings = append(res.Warnings, snap.Warnings...)
		}
		return a.printJSON(struct {
			State    store.State `json:"state"`
			Restored bool        `json:"restored"`
			Warnings []string    `json:"warnings"`
		}{a.store.State(), restored, res.Warnings})

	case "play":
		if _, err := a.loadFile(args[0]); err != nil {
			return err
		}
		if opts.restore {
			if _, _, err := a.restoreAutosave(); err != nil {
				return err
			}
		}
		if err := a.startAutosave(); err != nil {
			return err
		}
		return a.play(ctx, opts)

	case "save":
		if _, err := a.loadFile(args[0]); err != nil {
			return err
		}
		if _, err := a.openBackend(); err != nil {
			return err
		}
		var res handlers.IDResult
		if err := a.dispatch(handlers.CmdProjectSave, nil, &res); err != nil {
			return err
		}
		return a.printJSON(res)

	case "open":
		if _, err := a.openBackend(); err != nil {
			return err
		}
		if err := a.dispatch(handlers.CmdProjectOpen, handlers.IDResult{ID: args[0]}, nil); err != nil {
			return err
		}
		return a.printJSON(a.store.Project())

	case "list":
		if _, err := a.openBackend(); err != nil {
			return err
		}
		var summaries []storage.Summary
		if err := a.dispatch(handlers.CmdProjectList, nil, &summaries); err != nil {
			return err
		}
		return a.printList(summaries)

	case "share":
		if _, err := a.loadFile(args[0]); err != nil {
			return err
		}
		var payload json.RawMessage
		if err := a.dispatch(handlers.CmdProjectShare, nil, &payload); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.out, string(payload))
		return err

	case "script":
		raw, err := readDocument(args[0])
		if err != nil {
			return err
		}
		steps, err := parseScript(raw)
		if err != nil {
			return err
		}
		if _, err := a.openBackend(); err != nil {
			return err
		}
		if err := a.startAutosave(); err != nil {
			return err
		}
		return a.runScript(steps)
	}
	return nil
}

// readDocument reads a file, decompressing it when it ends in .gz.
func readDocument(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return raw, nil
}

func (a *app) loadFile(path string) (parser.Result, error) {
	raw, err := readDocument(path)
	if err != nil {
		return parser.Result{}, err
	}
	var res parser.Result
	if err := a.dispatch(handlers.CmdProjectLoad, json.RawMessage(raw), &res); err != nil {
		return res, err
	}
	return res, nil
}

// hydrateFile converts a share payload and prints the resulting project.
func (a *app) hydrateFile(path string) error {
	raw, err := readDocument(path)
	if err != nil {
		return err
	}
	if err := hydrate.ValidateSize(raw); err != nil {
		return err
	}
	payload, err := hydrate.Decode(raw)
	if err != nil {
		return err
	}
	p, err := hydrate.Hydrate(payload, hydrate.WithWarnings(func(msg string) {
		a.logger.Warn("hydration repaired value", "warning", msg)
	}))
	if err != nil {
		return err
	}
	a.store.InstallProject(p)
	a.refresh()
	a.logger.Info("share payload hydrated", "version", payload.PayloadVersion(), "frames", len(p.Frames))
	return a.printJSON(a.store.Project())
}

func (a *app) printList(summaries []storage.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(a.out, "no stored projects")
		return err
	}
	for _, s := range summaries {
		if _, err := fmt.Fprintf(a.out, "%s\t%s\t%s\t%d frames\t%d entities\t%s\n",
			s.ID, s.Name, s.Sport, s.FrameCount, s.EntityCount, s.UpdatedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

// play runs the clock against the store until playback ends, ctx is done or
// opts.max elapses, printing a line whenever a new frame starts.
func (a *app) play(ctx context.Context, opts options) error {
	speed, ok := core.ParsePlaybackSpeed(opts.speed)
	if !ok {
		return fmt.Errorf("unsupported playback speed %v, want one of %s", opts.speed, speedList())
	}
	if err := a.dispatch(handlers.CmdPlaybackSpeed, map[string]float64{"speed": float64(speed)}, nil); err != nil {
		return err
	}
	if opts.loop != a.store.State().LoopPlayback {
		if err := a.dispatch(handlers.CmdPlaybackLoop, nil, nil); err != nil {
			return err
		}
	}
	if err := a.dispatch(handlers.CmdPlaybackPlay, nil, nil); err != nil {
		return err
	}
	p := a.store.Project()
	if _, err := fmt.Fprintf(a.out, "playing %q: %d frames, %s at %vx\n",
		p.Name, len(p.Frames), time.Duration(p.TotalDuration())*time.Millisecond, float64(speed)); err != nil {
		return err
	}

	if opts.max > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.max)
		defer cancel()
	}
	interval := a.tickInterval
	if interval <= 0 {
		interval = playback.DefaultInterval
	}

	clock := playback.New(a.store, playback.WithInterval(interval), playback.WithLogger(a.logger))
	positions := make(chan core.PlaybackPosition, 64)
	done := make(chan struct{})
	clock.Start(func(pos core.PlaybackPosition) {
		select {
		case positions <- pos:
		default:
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				clock.Stop()
				return a.dispatch(handlers.CmdPlaybackPause, nil, nil)
			case <-ticker.C:
				if !clock.Running() {
					return nil
				}
			}
		}
	})
	g.Go(func() error {
		last := -1
		show := func(pos core.PlaybackPosition) error {
			if pos.FromFrameIndex == last {
				return nil
			}
			last = pos.FromFrameIndex
			return a.printFrame(pos)
		}
		for {
			select {
			case <-done:
				for {
					select {
					case pos := <-positions:
						if err := show(pos); err != nil {
							return err
						}
					default:
						return nil
					}
				}
			case pos := <-positions:
				if err := show(pos); err != nil {
					return err
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st := a.store.State()
	_, err := fmt.Fprintf(a.out, "stopped on frame %d/%d\n", st.CurrentFrameIndex+1, st.FrameCount)
	return err
}

func (a *app) printFrame(pos core.PlaybackPosition) error {
	var render handlers.RenderResult
	if err := a.dispatch(handlers.CmdRender, nil, &render); err != nil {
		return err
	}
	_, err := fmt.Fprintf(a.out, "frame %d/%d -> %d\t%d entities\t%d annotations\n",
		pos.FromFrameIndex+1, render.State.FrameCount, pos.ToFrameIndex+1,
		len(render.Entities), len(render.Annotations))
	return err
}
