// Package models provides data structures and constants for dbaasd.
//
// This package contains the core domain models used throughout dbaasd:
//   - Database: Represents a provisioned database resource and its lifecycle state
//   - Region: Reference entity describing where a database is hosted
//   - CallerContext: The identity and privilege level behind an operation
//   - Credentials: Decrypted connection credentials for an activated database
//
// All models are designed for database persistence and JSON serialization.
package models

import "time"

// DatabaseStatus represents the current state of a database in its lifecycle.
//
// The state machine enforces valid transitions:
//
//	reviewing → active (activate, credentials required the first time)
//	active → reconfiguring (reconfigure)
//	reconfiguring → active (activate)
//	reviewing|active|reconfiguring → deleted (delete, terminal)
//
// deleted is terminal: no further mutation is permitted once set. Update
// does not change status.
type DatabaseStatus string

const (
	// StatusReviewing is the initial state when a database is requested but not yet provisioned.
	StatusReviewing DatabaseStatus = "reviewing"
	// StatusActive indicates the database is provisioned and reachable.
	StatusActive DatabaseStatus = "active"
	// StatusReconfiguring indicates a change request is in flight for an active database.
	StatusReconfiguring DatabaseStatus = "reconfiguring"
	// StatusDeleted indicates the database has been soft-deleted. Terminal.
	StatusDeleted DatabaseStatus = "deleted"
)

// DatabaseWorkload sizes the provisioned database.
type DatabaseWorkload string

const (
	WorkloadSmall  DatabaseWorkload = "small"
	WorkloadMedium DatabaseWorkload = "medium"
	WorkloadLarge  DatabaseWorkload = "large"
)

// ValidWorkload reports whether w is a recognized workload value.
func ValidWorkload(w DatabaseWorkload) bool {
	switch w {
	case WorkloadSmall, WorkloadMedium, WorkloadLarge:
		return true
	}
	return false
}

// Event names recorded in Database.Events. Each lifecycle-affecting
// operation writes exactly one key; repeated operations overwrite it.
const (
	EventCreated      = "created"
	EventUpdated      = "updated"
	EventReconfigured = "reconfigured"
	EventActivated    = "activated"
	EventDeleted      = "deleted"
)

// Actions used when opening helpdesk cases for a database.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// CallType distinguishes provider operators from account users.
type CallType string

const (
	// CallTypeAdmin marks calls made by provider operators. Admin callers
	// see all accounts and never trigger helpdesk case creation.
	CallTypeAdmin CallType = "admin"
	// CallTypeUser marks calls made on behalf of a tenant account.
	CallTypeUser CallType = "user"
)

// CallerContext carries the authenticated identity under which an
// operation executes. It is ephemeral and never persisted.
type CallerContext struct {
	AccountID      string
	UserID         string
	CallType       CallType
	InstallationID string
}

// Admin reports whether the caller operates with provider privileges.
func (c CallerContext) Admin() bool {
	return c.CallType == CallTypeAdmin
}

// RegionRef is the embedded region snapshot on a database document.
type RegionRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UserRef is the embedded tech-contact snapshot on a database document.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ActorRef identifies the user recorded as responsible for an audit event.
type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CaseRef points at an external helpdesk case opened for a database.
type CaseRef struct {
	ID string `json:"id"`
}

// EventRecord is one audit entry in Database.Events.
//
// By is nil for events no actor is resolved for (activate, delete).
type EventRecord struct {
	At time.Time `json:"at"`
	By *ActorRef `json:"by,omitempty"`
}

// Credentials is the decrypted connection bundle for an activated
// database. It is stored encrypted and only ever decrypted for privileged
// callers while the database is active or reconfiguring.
type Credentials struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Database represents a provisioned database resource managed by dbaasd.
//
// Fields:
//   - ID: Unique identifier assigned by the engine at creation (never client-supplied)
//   - Name, Description: Owner-editable short text
//   - Workload: Sizing enum, editable only via the activate transition
//   - Status: Current lifecycle state
//   - AccountID: Owning tenant, set once at creation, immutable
//   - Region: Embedded region snapshot, immutable after creation
//   - TechContact: Embedded account-user snapshot, mutable via update
//   - Credentials: Encrypted connection bundle (nil until first activation)
//   - Cases: Append-only helpdesk case references; the last entry is the current case
//   - Events: Audit trail keyed by event name
type Database struct {
	ID          string
	Name        string
	Description string
	Workload    DatabaseWorkload
	Status      DatabaseStatus
	AccountID   string
	Region      RegionRef
	TechContact UserRef
	Credentials []byte
	Cases       []CaseRef
	Events      map[string]EventRecord
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CurrentCase returns the most recently opened case reference, if any.
func (d Database) CurrentCase() (CaseRef, bool) {
	if len(d.Cases) == 0 {
		return CaseRef{}, false
	}
	return d.Cases[len(d.Cases)-1], true
}

// Deleted reports whether the database reached its terminal state.
func (d Database) Deleted() bool {
	return d.Status == StatusDeleted
}

// Region is a globally shared reference entity. Immutable once created
// and not owned by any tenant.
type Region struct {
	ID   string
	Name string
}
