package state

import (
	logger "github.com/sirupsen/logrus"
)

// Event is an observable outcome of an operation. Events are only
// published once the operation that emitted them has been committed.
type Event struct {
	Name   string
	OpID   string
	Fields logger.Fields
}

// EventSink receives committed events.
type EventSink interface {
	HandleEvents(events []Event)
}

// FindEvents returns the events named name.
func FindEvents(events []Event, name string) []Event {
	var found []Event
	for _, ev := range events {
		if ev.Name == name {
			found = append(found, ev)
		}
	}
	return found
}
