package deployer

import (
	"time"

	"uxy/services/planner"
)

const (
	// EventStream groups every deployment subject on the bus.
	EventStream = "UXY_DEPLOYMENTS"

	SubjectFinished  = "uxy.deployments.finished"
	SubjectCancelled = "uxy.deployments.cancelled"
	subjectWildcard  = "uxy.deployments.>"
)

// EventSubjects lists the subjects covered by EventStream.
func EventSubjects() []string { return []string{subjectWildcard} }

// Event is published when a deployment reaches a terminal state.
type Event struct {
	DeploymentID string                 `json:"deployment_id"`
	App          string                 `json:"app"`
	Stage        string                 `json:"stage"`
	State        State                  `json:"state"`
	Count        int                    `json:"deployment_count"`
	Actions      []planner.UpdateAction `json:"actions"`
	Kind         Kind                   `json:"kind,omitempty"`
	Error        string                 `json:"error,omitempty"`
	At           time.Time              `json:"at"`
}

// MessageID deduplicates retried publishes of the same terminal event.
func (e Event) MessageID() string {
	return e.DeploymentID + "." + string(e.State)
}
