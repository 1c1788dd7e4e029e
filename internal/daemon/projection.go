package daemon

import (
	"fmt"

	"github.com/dbaasd/dbaasd/internal/models"
)

// OwnerRef names the account a database belongs to.
type OwnerRef struct {
	ID string `json:"id"`
}

// DatabaseView is the external shape of a database document. Credentials
// are present only for privileged callers while the database is active or
// reconfiguring; everyone else gets the document without them.
type DatabaseView struct {
	ID          string                        `json:"id"`
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Workload    models.DatabaseWorkload       `json:"workload"`
	Status      models.DatabaseStatus         `json:"status"`
	Owner       OwnerRef                      `json:"owner"`
	Region      models.RegionRef              `json:"region"`
	TechContact models.UserRef                `json:"tech_contact"`
	Case        *models.CaseRef               `json:"case,omitempty"`
	Events      map[string]models.EventRecord `json:"events"`
	Credentials *models.Credentials           `json:"credentials,omitempty"`
	CreatedAt   string                        `json:"created_at"`
	UpdatedAt   string                        `json:"updated_at"`
}

// credentialStatuses are the lifecycle states in which stored credentials
// may be revealed to privileged callers.
func credentialStatus(status models.DatabaseStatus) bool {
	return status == models.StatusActive || status == models.StatusReconfiguring
}

// project converts a stored document into its external view. privileged
// requests decryption of the credentials bundle; it is honored only when
// the lifecycle state allows it and a bundle exists.
func (m *DatabaseManager) project(doc models.Database, privileged bool) (DatabaseView, error) {
	view := DatabaseView{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Workload:    doc.Workload,
		Status:      doc.Status,
		Owner:       OwnerRef{ID: doc.AccountID},
		Region:      doc.Region,
		TechContact: doc.TechContact,
		Events:      doc.Events,
		CreatedAt:   doc.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   doc.UpdatedAt.UTC().Format(timeLayout),
	}
	if view.Events == nil {
		view.Events = map[string]models.EventRecord{}
	}
	if current, ok := doc.CurrentCase(); ok {
		view.Case = &models.CaseRef{ID: current.ID}
	}
	if !privileged || !credentialStatus(doc.Status) || len(doc.Credentials) == 0 {
		return view, nil
	}
	if m.cipher == nil {
		return DatabaseView{}, ErrCipherNotConfigured
	}
	creds, err := m.cipher.Decrypt(doc.Credentials)
	if err != nil {
		return DatabaseView{}, fmt.Errorf("decrypt credentials for %s: %w", doc.ID, err)
	}
	view.Credentials = &creds
	return view, nil
}
