package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// SubjectTaskRPC is the subject every worker agent services on its own
// endpoint. The engine publishes a task envelope here with a reply inbox
// and the agent streams response messages back to the inbox.
const SubjectTaskRPC = "weft.rpc.task"

func TopicRunEvents(runID string) string {
	return fmt.Sprintf("events.run.%s", runID)
}

const (
	TopicEventsAll    = "events.>"
	TopicEventsAnyRun = "events.run.*"
)
