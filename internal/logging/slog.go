package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope of the OTel log bridge.
const ServiceName = "markertracker"

// stdout is swapped by tests.
var stdout io.Writer = os.Stdout

// SlogManager owns the process logger. Records go to the session log file
// (or the console before one exists), to any remote JSON writers and to the
// OTel log bridge when a provider is set.
type SlogManager struct {
	logger      *slog.Logger
	level       slog.LevelVar
	logProvider *sdklog.LoggerProvider

	context ContextProvider
	remote  []io.Writer
}

// NewSlogManager returns a manager logging at info until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// SetContextProvider installs a provider whose attributes are appended to
// every record under the "tracker" group. It takes effect on the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// AddRemote registers a writer that receives JSON records, such as a GELF
// writer. It takes effect on the next Setup.
func (m *SlogManager) AddRemote(w io.Writer) {
	if w != nil {
		m.remote = append(m.remote, w)
	}
}

// NewGraylogWriter dials a GELF UDP endpoint.
func NewGraylogWriter(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graylog at %s: %w", address, err)
	}
	return w, nil
}

// parseLevel accepts anything slog.Level.UnmarshalText does ("debug",
// "WARN", "INFO+2"). Unknown values fall back to info.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SetLevel changes the level of the running logger without rebuilding it.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// Level reports the current minimum level.
func (m *SlogManager) Level() slog.Level {
	return m.level.Level()
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup rebuilds the logger. Console output is used only when file is nil;
// a nil provider disables the OTel bridge.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.SetLevel(level)
	m.logProvider = provider

	opts := &slog.HandlerOptions{Level: &m.level, ReplaceAttr: utcTime}

	local := file
	if local == nil {
		local = stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(local, opts)}
	for _, w := range m.remote {
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if m.context != nil {
		h = NewContextHandler(h, "tracker", m.context)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", m.level.Level())
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
