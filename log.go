package ntrip

import "github.com/sirupsen/logrus"

// callbackHook is a logrus.Hook that forwards every fired entry to a
// Client's LogCallback, translating logrus's levels down to the four
// levels of the Log callback surface (spec §6). Trace folds into Debug;
// Fatal and Panic fold into Error since this library never calls either.
type callbackHook struct {
	cbs *callbacks
}

func newCallbackHook(cbs *callbacks) *callbackHook {
	return &callbackHook{cbs: cbs}
}

func (h *callbackHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callbackHook) Fire(entry *logrus.Entry) error {
	h.cbs.fireLog(translateLevel(entry.Level), entry.Message)
	return nil
}

func translateLevel(l logrus.Level) LogLevel {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LogDebug
	case logrus.InfoLevel:
		return LogInfo
	case logrus.WarnLevel:
		return LogWarn
	default:
		return LogError
	}
}

// newWorkerLogger derives the per-attempt logrus.FieldLogger a worker
// logs through, tagged with session_id so every line for this attempt
// can be correlated. The callbackHook forwarding to the user's
// LogCallback is attached once to the underlying *logrus.Logger at
// Client construction, so every derived Entry shares it automatically.
func newWorkerLogger(base logrus.FieldLogger, sessionID string) logrus.FieldLogger {
	return base.WithField("session_id", sessionID)
}

// attachCallbackHook registers cbs's hook on logger if logger is backed
// by a *logrus.Logger; FieldLogger values produced by Entry.WithFields
// already share hooks with their parent Logger, so this only needs to
// run once, at Client construction.
func attachCallbackHook(logger *logrus.Logger, cbs *callbacks) {
	logger.AddHook(newCallbackHook(cbs))
}
