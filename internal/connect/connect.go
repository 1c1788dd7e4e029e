// Package connect talks to the provisioning platform on behalf of dbaasd.
//
// The platform owns three things dbaasd needs during a database
// lifecycle: account users (tech contacts and audit actors),
// installations (mapping an installation to the extension-owner
// account), and helpdesk cases tracking create/reconfigure requests.
//
// The Client interface is implemented by APIClient for production and by
// a fake in internal/testing.
package connect

import (
	"context"

	"github.com/dbaasd/dbaasd/internal/models"
)

// User is an account user resolved from the platform.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// Ref converts the user to the embedded document snapshot.
func (u User) Ref() models.UserRef {
	return models.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// ActorRef converts the user to the audit-event actor form.
func (u User) ActorRef() models.ActorRef {
	return models.ActorRef{ID: u.ID, Name: u.Name}
}

// Installation describes one deployment of the extension. OwnerAccountID
// is the account that operates the extension and receives helpdesk cases.
type Installation struct {
	ID             string
	OwnerAccountID string
}

// Case is a helpdesk case opened for a database request.
type Case struct {
	ID string `json:"id"`
}

// CaseRecipient names a user notified about a case.
type CaseRecipient struct {
	ID string `json:"id"`
}

// CaseIssuer identifies the requesting side of a case.
type CaseIssuer struct {
	Recipients []CaseRecipient `json:"recipients"`
}

// CaseReceiver identifies the account a case is routed to.
type CaseReceiver struct {
	Account CaseRecipient `json:"account"`
}

// CaseRequest is the payload for opening a helpdesk case.
type CaseRequest struct {
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	Priority    int          `json:"priority"`
	Type        string       `json:"type"`
	Issuer      CaseIssuer   `json:"issuer"`
	Receiver    CaseReceiver `json:"receiver"`
}

// Client is the platform surface the lifecycle engine depends on.
type Client interface {
	// GetAccountUser resolves a user within an account. Returns
	// ErrNotFound when the user does not exist in that account.
	GetAccountUser(ctx context.Context, accountID, userID string) (User, error)
	// GetInstallation resolves an installation and its owner account.
	GetInstallation(ctx context.Context, installationID string) (Installation, error)
	// CreateCase opens a helpdesk case.
	CreateCase(ctx context.Context, req CaseRequest) (Case, error)
	// ResolveCase closes a helpdesk case. Callers treat failures as
	// best-effort.
	ResolveCase(ctx context.Context, caseID string) error
}
