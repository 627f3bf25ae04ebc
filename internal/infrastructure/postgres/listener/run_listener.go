package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	channelName       = "sync_run_finished"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// RunFinished is the payload announced when a sync pass is recorded as
// finished.
type RunFinished struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Budgets    int       `json:"budgets"`
	Failures   int       `json:"failures"`
}

// RunListener follows the sync_run_finished channel on a dedicated
// connection and hands every announcement to a callback.
type RunListener struct {
	connStr string
	handle  func(RunFinished)
	logger  zerolog.Logger
}

func NewRunListener(connStr string, handle func(RunFinished), logger zerolog.Logger) *RunListener {
	return &RunListener{connStr: connStr, handle: handle, logger: logger}
}

// Listen blocks until ctx is done, reconnecting after connection loss.
func (l *RunListener) Listen(ctx context.Context) {
	for {
		l.connectAndListen(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info().Msg("reconnecting to notification channel")
		}
	}
}

func (l *RunListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, l.onEvent)
	defer listener.Close()

	if err := listener.Listen(channelName); err != nil {
		l.logger.Error().Err(err).Str("channel", channelName).Msg("failed to listen")
		return
	}
	l.logger.Debug().Str("channel", channelName).Msg("listening")

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// Connection lost; pq re-establishes it but notifications
				// sent meanwhile are gone.
				continue
			}
			l.dispatch(n.Extra)
		case <-time.After(pingInterval):
			if err := listener.Ping(); err != nil {
				l.logger.Warn().Err(err).Msg("listener ping failed")
				return
			}
		}
	}
}

func (l *RunListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.logger.Debug().Msg("notification channel connected")
	case pq.ListenerEventDisconnected:
		l.logger.Warn().Err(err).Msg("notification channel disconnected")
	case pq.ListenerEventReconnected:
		l.logger.Info().Msg("notification channel reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn().Err(err).Msg("notification channel connection attempt failed")
	}
}

func (l *RunListener) dispatch(payload string) {
	ev, err := ParseRunFinished(payload)
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to parse notification payload")
		return
	}
	l.handle(ev)
}

// ParseRunFinished decodes a sync_run_finished payload.
func ParseRunFinished(payload string) (RunFinished, error) {
	var ev RunFinished
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}
