package daemon

import (
	"fmt"

	"github.com/dbaasd/dbaasd/internal/connect"
	"github.com/dbaasd/dbaasd/internal/models"
)

const (
	helpdeskCasePriority = 2
	helpdeskCaseType     = "technical"

	// defaultCaseDetails fills the free-text block when the requester
	// supplied none.
	defaultCaseDetails = "-"
)

// buildCaseRequest renders the helpdesk case payload for a database
// request. The case is issued to the technical contact and routed to the
// account operating the extension installation.
func buildCaseRequest(doc models.Database, action, details string, installation connect.Installation) connect.CaseRequest {
	if details == "" {
		details = defaultCaseDetails
	}
	subject := fmt.Sprintf("Infra %s %s %s", doc.ID, action, doc.Name)
	description := fmt.Sprintf(
		"\nID: %s\nName: %s\nAction: %s\nWorkload: %s\nRegion: %s\nContact: %s\n\n%s\n",
		doc.ID,
		doc.Name,
		action,
		doc.Workload,
		doc.Region.ID,
		doc.TechContact.ID,
		details,
	)
	return connect.CaseRequest{
		Subject:     subject,
		Description: description,
		Priority:    helpdeskCasePriority,
		Type:        helpdeskCaseType,
		Issuer: connect.CaseIssuer{
			Recipients: []connect.CaseRecipient{{ID: doc.TechContact.ID}},
		},
		Receiver: connect.CaseReceiver{
			Account: connect.CaseRecipient{ID: installation.OwnerAccountID},
		},
	}
}
