// Package logging builds the process logger and adapts it to the
// key/value Logger interface the rental engine expects.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warp/book-rental/rental"
)

// FieldComponent tags which part of the server wrote an entry.
const FieldComponent = "component"

// New creates a logger writing to out. format is "text" or "json".
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

// Adapter implements rental.Logger on a logrus entry.
type Adapter struct {
	entry *logrus.Entry
}

var _ rental.Logger = (*Adapter)(nil)

// For returns an adapter whose entries carry component=name.
func For(logger *logrus.Logger, component string) *Adapter {
	return &Adapter{entry: logger.WithField(FieldComponent, component)}
}

func (a *Adapter) Debug(msg string, args ...any) { a.entry.WithFields(fields(args)).Debug(msg) }
func (a *Adapter) Info(msg string, args ...any)  { a.entry.WithFields(fields(args)).Info(msg) }
func (a *Adapter) Warn(msg string, args ...any)  { a.entry.WithFields(fields(args)).Warn(msg) }
func (a *Adapter) Error(msg string, args ...any) { a.entry.WithFields(fields(args)).Error(msg) }

// Entry exposes the underlying logrus entry.
func (a *Adapter) Entry() *logrus.Entry {
	return a.entry
}

// fields turns alternating key/value args into logrus fields. A trailing
// key without a value is kept under "!BADKEY".
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			f["!BADKEY"] = key
			break
		}
		if err, isErr := args[i+1].(error); isErr {
			f[key] = err.Error()
			continue
		}
		f[key] = args[i+1]
	}
	return f
}
