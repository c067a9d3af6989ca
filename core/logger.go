package core

type Level int8

const (
	Disabled   Level = -1   // Disabled is used for disabled logging.
	TraceLevel Level = iota // TraceLevel is used for detailed debugging information.
	DebugLevel              // DebugLevel is used for debugging information.
	InfoLevel               // InfoLevel is used for informational messages.
	WarnLevel               // WarnLevel is used for warning messages.
	ErrorLevel              // ErrorLevel is used for error messages.
	FatalLevel              // FatalLevel is used for fatal messages that cause the program to exit.
	PanicLevel              // PanicLevel is used for panic messages that cause the program to panic.
	NoLevel                 // NoLevel is used for no logging level.
)

// Logger is the logging sink injected into every component at construction.
// There is no package-level logger; components receive their own.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	Print(args ...any)
	Trace(args ...any)
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)
	Panic(args ...any)

	Printf(format string, args ...any)
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	Panicf(format string, args ...any)

	SetLevel(level Level)
	GetLevel() Level
}

// NewNopLogger returns a logger that discards everything. Useful as a default
// and in tests.
func NewNopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) WithField(string, any) Logger        { return nopLogger{} }
func (nopLogger) WithFields(map[string]any) Logger    { return nopLogger{} }
func (nopLogger) WithError(error) Logger              { return nopLogger{} }
func (nopLogger) Print(...any)                        {}
func (nopLogger) Trace(...any)                        {}
func (nopLogger) Debug(...any)                        {}
func (nopLogger) Info(...any)                         {}
func (nopLogger) Warn(...any)                         {}
func (nopLogger) Error(...any)                        {}
func (nopLogger) Fatal(...any)                        {}
func (nopLogger) Panic(...any)                        {}
func (nopLogger) Printf(string, ...any)               {}
func (nopLogger) Tracef(string, ...any)               {}
func (nopLogger) Debugf(string, ...any)               {}
func (nopLogger) Infof(string, ...any)                {}
func (nopLogger) Warnf(string, ...any)                {}
func (nopLogger) Errorf(string, ...any)               {}
func (nopLogger) Fatalf(string, ...any)               {}
func (nopLogger) Panicf(string, ...any)               {}
func (nopLogger) SetLevel(Level)                      {}
func (nopLogger) GetLevel() Level                     { return Disabled }
