package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/pkg/core"
	"github.com/spf13/pflag"
)

// BuildDate can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "playbook"
)

var errUsage = errors.New("usage")

const usage = `playbook [flags] <command> [args]

Commands:
  new                       print a fresh project
  hydrate <payload.json>    convert a share payload into a project
  load <file>               load a project document and print its state
  play <file>               play a project document in the terminal
  save <file>               load a document and save it to the storage backend
  open <id>                 open a stored project and print it
  list                      list stored projects
  share <file>              print a document as a version 2 share payload
  script <commands.yaml>    run a list of editor commands in order

Flags:
`

// options are the parsed command line flags.
type options struct {
	configDir string
	envFile   string
	speed     float64
	loop      bool
	max       time.Duration
	restore   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// speedList renders the supported playback speeds as "0.5, 1, 2".
func speedList() string {
	speeds := core.PlaybackSpeeds()
	out := make([]string, len(speeds))
	for i, s := range speeds {
		out[i] = strconv.FormatFloat(float64(s), 'f', -1, 64)
	}
	return strings.Join(out, ", ")
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configDir, "config", ".", "directory containing "+config.FileName)
	fs.StringVar(&opts.envFile, "env", ".env", "environment file loaded before the config")
	fs.Float64Var(&opts.speed, "speed", 1, "playback speed ("+speedList()+")")
	fs.BoolVar(&opts.loop, "loop", false, "loop playback")
	fs.DurationVar(&opts.max, "max", 0, "stop playback after this long (0 plays to the end)")
	fs.BoolVar(&opts.restore, "restore", false, "load and play resume from the newest autosave snapshot of the project")
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errUsage
	}

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", opts.envFile, err)
	}
	if err := config.Load(opts.configDir); err != nil {
		return err
	}

	a, err := newApp(out, time.Now())
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Debug("running command", "command", rest[0], "version", Version, "buildDate", BuildDate)
	return a.runCommand(ctx, strings.ToLower(rest[0]), rest[1:], opts)
}
