package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestRegistryDefaultLevelIsInfo(t *testing.T) {
	base, logs := newObserved()
	r := NewRegistry("", base)
	log := r.For(DomainGenicam)

	log.Debug("should be filtered")
	log.Info("should pass")

	if logs.Len() != 1 {
		t.Fatalf("got %d log lines, want 1 (Debug filtered, Info passed)", logs.Len())
	}
}

func TestRegistryPerDomainLevelOverride(t *testing.T) {
	base, logs := newObserved()
	r := NewRegistry("stream.gvsp:debug,transport.gv:warn", base)

	r.For(DomainStreamGVSP).Debug("gvsp debug")
	r.For(DomainTransportGV).Info("gv info, should be filtered")
	r.For(DomainTransportGV).Warn("gv warn, should pass")

	if logs.Len() != 2 {
		t.Fatalf("got %d log lines, want 2", logs.Len())
	}
}

func TestRegistryWildcardSetsDefault(t *testing.T) {
	base, logs := newObserved()
	r := NewRegistry("*:error", base)
	log := r.For(DomainDiscovery)

	log.Warn("should be filtered under *:error")
	log.Error("should pass")

	if logs.Len() != 1 {
		t.Fatalf("got %d log lines, want 1", logs.Len())
	}
}

func TestParseLevelNumericAravisStyle(t *testing.T) {
	cases := map[string]zapcore.Level{
		"0": zapcore.WarnLevel,
		"1": zapcore.InfoLevel,
		"2": zapcore.DebugLevel,
		"9": zapcore.DebugLevel,
	}
	for s, want := range cases {
		if got := parseLevel(s); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseLevelUnknownTokenDefaultsToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got != zapcore.InfoLevel {
		t.Fatalf("got %v, want InfoLevel", got)
	}
}

func TestForNamesLoggerByDomain(t *testing.T) {
	base, logs := newObserved()
	r := NewRegistry("", base)
	r.For(DomainTransportU3V).Info("hello")

	if logs.Len() != 1 {
		t.Fatalf("got %d entries, want 1", logs.Len())
	}
	if got := logs.All()[0].LoggerName; got != DomainTransportU3V {
		t.Fatalf("logger name = %q, want %q", got, DomainTransportU3V)
	}
}
