package export

// Level classifies a progress event for the consuming UI.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Event is one structured progress message emitted during an export.
type Event struct {
	Message string
	Level   Level
}

// ProgressSink receives the running event stream. Implementations
// must not block; the orchestrator publishes synchronously.
type ProgressSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the ProgressSink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// NopSink discards all events.
func NopSink() ProgressSink { return SinkFunc(func(Event) {}) }
