package supervisor

import (
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

var eventNames = map[suture.EventType]string{
	suture.EventTypeStopTimeout:      "stop_timeout",
	suture.EventTypeServicePanic:     "service_panic",
	suture.EventTypeServiceTerminate: "service_terminate",
	suture.EventTypeBackoff:          "backoff",
	suture.EventTypeResume:           "resume",
}

// EventHook 把 suture 事件写入 zerolog
func EventHook(logger zerolog.Logger) suture.EventHook {
	l := logger.With().Str("component", "supervisor").Logger()
	return func(e suture.Event) {
		var ev *zerolog.Event
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeStopTimeout:
			ev = l.Error()
		case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Fields(e.Map()).Str("event", eventNames[e.Type()]).Msg(e.String())
	}
}
