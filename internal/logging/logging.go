// Package logging adapts the ARV_DEBUG environment-variable convention of
// spec.md §6 ("domain[:level][,domain[:level]]*") onto a zap logger: one
// named sub-logger per subsystem domain, each independently levelled.
package logging

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Well-known domain names, matching SPEC_FULL.md §2's list.
const (
	DomainTransportGV  = "transport.gv"
	DomainTransportU3V = "transport.u3v"
	DomainGenicam      = "genicam"
	DomainStreamGVSP   = "stream.gvsp"
	DomainStreamUVSP   = "stream.uvsp"
	DomainDiscovery    = "discovery"
)

// Registry hands out a *zap.Logger per domain, each filtered to the level
// requested for that domain by ARV_DEBUG (or the default level if the
// domain wasn't named).
type Registry struct {
	base    *zap.Logger
	levels  map[string]zapcore.Level
	defaultLevel zapcore.Level
}

// NewRegistry builds a Registry from an ARV_DEBUG-style spec string, e.g.
// "stream.gvsp:debug,transport.gv:warn". An empty spec means every domain
// logs at Info. Unknown level tokens are treated as Info.
func NewRegistry(spec string, base *zap.Logger) *Registry {
	r := &Registry{base: base, levels: map[string]zapcore.Level{}, defaultLevel: zapcore.InfoLevel}
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, ":", 2)
		domain := parts[0]
		level := zapcore.InfoLevel
		if len(parts) == 2 {
			level = parseLevel(parts[1])
		}
		if domain == "*" || domain == "" {
			r.defaultLevel = level
			continue
		}
		r.levels[domain] = level
	}
	return r
}

// NewFromEnv builds a Registry from the ARV_DEBUG environment variable.
func NewFromEnv(base *zap.Logger) *Registry {
	return NewRegistry(os.Getenv("ARV_DEBUG"), base)
}

func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "info":
		return zapcore.InfoLevel
	case "debug":
		return zapcore.DebugLevel
	default:
		if n, err := strconv.Atoi(s); err == nil {
			// Aravis-style numeric levels: higher is noisier, zap's scale
			// runs the other way, so invert and clamp.
			switch {
			case n <= 0:
				return zapcore.WarnLevel
			case n == 1:
				return zapcore.InfoLevel
			default:
				return zapcore.DebugLevel
			}
		}
		return zapcore.InfoLevel
	}
}

// For returns the logger for domain, named so log lines carry their domain.
func (r *Registry) For(domain string) *zap.Logger {
	level, ok := r.levels[domain]
	if !ok {
		level = r.defaultLevel
	}
	core := r.base.Core()
	filtered := zapcore.NewTee(&levelFilterCore{Core: core, min: level})
	return zap.New(filtered).Named(domain)
}

// levelFilterCore drops entries below min regardless of the wrapped core's
// own level, letting each domain be raised or lowered independently of the
// process-wide zap level.
type levelFilterCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), min: c.min}
}
