package unwrapr

// Logger is how this library speaks. Provide your own or use NoLogger().
type Logger interface {
	// Printf is used for warnings and progress messages.
	Printf(msg string, v ...any)
	// Debugf is used for noisy internals: compiled pipelines, tool paths.
	Debugf(msg string, v ...any)
}

// NoLogger gives you an empty Logger for cases when you don't want any output.
func NoLogger() Logger { return &antiLogger{} }

type antiLogger struct{}

func (*antiLogger) Printf(_ string, _ ...any) {}
func (*antiLogger) Debugf(_ string, _ ...any) {}
