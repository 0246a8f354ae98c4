package store

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusNew              Status = "new"
	StatusIdentifying      Status = "identifying"
	StatusWaiting          Status = "waiting"
	StatusRipping          Status = "ripping"
	StatusWaitingTranscode Status = "waiting_transcode"
	StatusTranscoding      Status = "transcoding"
	StatusActive           Status = "active"
	StatusSuccess          Status = "success"
	StatusFail             Status = "fail"
)

var allStatuses = []Status{
	StatusNew,
	StatusIdentifying,
	StatusWaiting,
	StatusRipping,
	StatusWaitingTranscode,
	StatusTranscoding,
	StatusActive,
	StatusSuccess,
	StatusFail,
}

var statusSet = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		m[status] = struct{}{}
	}
	return m
}()

// AllStatuses returns a copy of every known job status.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ActiveStatuses returns every non-terminal status.
func ActiveStatuses() []Status {
	var out []Status
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatus converts a string into a known status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions other than abandon apply.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFail
}

// Event is an input to the job state machine.
type Event string

const (
	EventIdentify       Event = "identify"
	EventManualWait     Event = "manual_wait"
	EventResume         Event = "resume"
	EventRip            Event = "rip"
	EventQueueTranscode Event = "queue_transcode"
	EventTranscode      Event = "transcode"
	EventActivate       Event = "activate"
	EventComplete       Event = "complete"
	EventFail           Event = "fail"
	EventAbandon        Event = "abandon"
)

// ErrInvalidTransition is returned when an event does not apply to the
// job's current status.
var ErrInvalidTransition = errors.New("invalid job status transition")

var transitions = map[Status]map[Event]Status{
	StatusNew: {
		EventIdentify: StatusIdentifying,
	},
	StatusIdentifying: {
		EventManualWait:     StatusWaiting,
		EventRip:            StatusRipping,
		EventQueueTranscode: StatusWaitingTranscode,
		EventTranscode:      StatusTranscoding,
	},
	StatusWaiting: {
		EventResume: StatusIdentifying,
	},
	StatusRipping: {
		EventQueueTranscode: StatusWaitingTranscode,
		EventTranscode:      StatusTranscoding,
		EventActivate:       StatusActive,
	},
	StatusWaitingTranscode: {
		EventTranscode: StatusTranscoding,
	},
	StatusTranscoding: {
		EventActivate: StatusActive,
	},
	StatusActive: {
		EventComplete: StatusSuccess,
	},
}

// Transition validates (current, event) and returns the resulting status.
// Fail applies to every non-terminal status; abandon applies to every status.
func Transition(current Status, event Event) (Status, error) {
	switch event {
	case EventAbandon:
		return StatusFail, nil
	case EventFail:
		if current.IsTerminal() {
			return current, fmt.Errorf("%w: %s on %s job", ErrInvalidTransition, event, current)
		}
		return StatusFail, nil
	}
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return current, fmt.Errorf("%w: %s on %s job", ErrInvalidTransition, event, current)
}
