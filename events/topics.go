package events

// Kafka Topics
// These constants define the Kafka topics producers publish log messages to
const (
	// TopicUserLogs carries general events emitted by the user service
	TopicUserLogs = "user-logs"

	// TopicCreateUserLogs carries creation events emitted by the create-user service
	TopicCreateUserLogs = "create-user-logs"
)

// DefaultTopics returns the topics the logging service subscribes to when none are configured
func DefaultTopics() []string {
	return []string{TopicUserLogs, TopicCreateUserLogs}
}

// Message headers set by emitters alongside the JSON payload
const (
	HeaderService     = "service"
	HeaderLevel       = "level"
	HeaderContentType = "content-type"

	ContentTypeJSON = "application/json"
)
