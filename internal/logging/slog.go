package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is the console destination, swapped out in tests.
var osStdout io.Writer = os.Stdout

// SlogManager builds the editor's slog.Logger: text records to a file or the
// console, mirrored to an OTel log provider when one is configured.
type SlogManager struct {
	serviceName string
	logger      *slog.Logger
	context     ContextProvider
	provider    *sdklog.LoggerProvider
}

// NewSlogManager names the OTel instrumentation scope after serviceName.
func NewSlogManager(serviceName string) *SlogManager {
	return &SlogManager{serviceName: serviceName}
}

// SetContextProvider adds attributes from p to every record logged after the
// next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// parseLevel accepts slog level names in any case. Unknown names mean info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record times as RFC 3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup replaces the logger. Records go to file, or to stdout when file is
// nil. A nil provider leaves OTel out.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	if file == nil {
		file = osStdout
	}
	m.provider = provider

	text := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: utcTime,
	})
	var bridge slog.Handler
	if provider != nil {
		bridge = otelslog.NewHandler(m.serviceName, otelslog.WithLoggerProvider(provider))
	}

	var handler slog.Handler = NewMultiHandler(text, bridge)
	if m.context != nil {
		handler = NewContextHandler(handler, m.context)
	}
	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level, "otel", provider != nil)
}

// Logger falls back to slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
