// Package services implements the application logic of the bridge: webhook
// ingestion, the inbound update state machine, outbound delivery, and
// attachment registration. This file centralizes the service-level error
// values so they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrEmptyMessage is returned when an outbound message carries neither
	// a body nor attachments. The validation runs before any platform call.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrConversationNotFound indicates that the requested conversation
	// does not exist or is not accessible to the current tenant.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrStaffNotFound indicates that the requested staff profile does not
	// exist in the tenant.
	ErrStaffNotFound = errors.New("staff not found")
)
