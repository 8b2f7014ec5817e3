// Package mlog defines the logging interface every component of the
// core depends on, mirroring the teacher's common/mlog.Logger contract.
package mlog

// Logger is the common interface for log implementations used across
// the core. Components depend on this interface, never on a concrete
// backend, so the hosting application can supply its own sink.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	WithFields(fields ...any) Logger

	Sync() error
}

// Nop is a Logger that discards everything, useful in tests and as a
// safe default when no logger is injected.
type Nop struct{}

func (Nop) Info(args ...any)                  {}
func (Nop) Infof(format string, args ...any)  {}
func (Nop) Error(args ...any)                 {}
func (Nop) Errorf(format string, args ...any) {}
func (Nop) Warn(args ...any)                  {}
func (Nop) Warnf(format string, args ...any)  {}
func (Nop) Debug(args ...any)                 {}
func (Nop) Debugf(format string, args ...any) {}
func (Nop) Fatal(args ...any)                 {}
func (Nop) Fatalf(format string, args ...any) {}
func (Nop) WithFields(fields ...any) Logger   { return Nop{} }
func (Nop) Sync() error                       { return nil }
