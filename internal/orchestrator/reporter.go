package orchestrator

// Reporter receives the human-readable status lines of a bootstrap run.
// *ui.Printer satisfies it.
type Reporter interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Info(string, ...any)    {}
func (nopReporter) Success(string, ...any) {}
func (nopReporter) Warn(string, ...any)    {}
func (nopReporter) Error(string, ...any)   {}
