package exchange

import "log/slog"

// Notifier reports live-trading events to an operator channel.
type Notifier interface {
	Notify(event, message string) error
}

// LogNotifier writes events to the structured log. It is the default
// when no external channel is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(event, message string) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notify", "event", event, "message", message)
	return nil
}
