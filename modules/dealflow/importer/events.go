package importer

import "github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"

// Publisher is satisfied by eventbus.EventBus.
type Publisher interface {
	Publish(args ...interface{})
}

type OrganizationCreatedEvent struct {
	RunID        string
	Organization organization.Organization
}

type ImportCompletedEvent struct {
	RunID   string
	Summary *Summary
}

type ImportAbortedEvent struct {
	RunID string
	Err   *RunError
}
