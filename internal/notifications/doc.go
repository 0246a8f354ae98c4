// Package notifications delivers job milestones to an ntfy topic.
//
// NewService returns a no-op implementation when no topic is configured.
// Delivery is fire-and-forget from the caller's point of view: the pipeline
// logs returned errors and carries on.
package notifications
