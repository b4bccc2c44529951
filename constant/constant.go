package constant

type StreamStatus string

const (
	StreamStatusStopped  StreamStatus = "stopped"
	StreamStatusRunning  StreamStatus = "running"
	StreamStatusStopping StreamStatus = "stopping"
	StreamStatusError    StreamStatus = "error"
)

func (s StreamStatus) String() string {
	return string(s)
}

type EventType string

const (
	EventStreamStatusChange EventType = "stream_status_change"
	EventContentUpdate      EventType = "moderation_content_update"
)

type ControlAction string

const (
	ControlActionStart     ControlAction = "start"
	ControlActionStop      ControlAction = "stop"
	ControlActionStartAll  ControlAction = "start_all"
	ControlActionStopAll   ControlAction = "stop_all"
	ControlActionReconcile ControlAction = "reconcile"
)

// ContentTypeInappropriateSpeech tags every record produced by the classifier.
const ContentTypeInappropriateSpeech = "inappropriate_speech"

// Markers the classifier must end its narrative with.
const (
	FlaggedMarker    = "[包含不当言论:是]"
	NotFlaggedMarker = "[包含不当言论:否]"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
