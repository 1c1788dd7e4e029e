package daemon

import (
	"testing"

	"github.com/dbaasd/dbaasd/internal/connect"
	"github.com/dbaasd/dbaasd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCaseRequest(t *testing.T) {
	doc := models.Database{
		ID:          "DBPG-10000",
		Name:        "Richard Watts",
		Workload:    models.WorkloadMedium,
		Region:      models.RegionRef{ID: "eu-west", Name: "Europe West"},
		TechContact: models.UserRef{ID: "UR-456", Name: "Richard Watts"},
	}
	installation := connect.Installation{ID: "EIN-001", OwnerAccountID: "PA-900"}

	t.Run("full payload", func(t *testing.T) {
		req := buildCaseRequest(doc, models.ActionUpdate, "Some desc", installation)
		assert.Equal(t, "Infra DBPG-10000 update Richard Watts", req.Subject)
		assert.Equal(t,
			"\nID: DBPG-10000\nName: Richard Watts\nAction: update\nWorkload: medium\nRegion: eu-west\nContact: UR-456\n\nSome desc\n",
			req.Description)
		assert.Equal(t, 2, req.Priority)
		assert.Equal(t, "technical", req.Type)
		require.Len(t, req.Issuer.Recipients, 1)
		assert.Equal(t, "UR-456", req.Issuer.Recipients[0].ID)
		assert.Equal(t, "PA-900", req.Receiver.Account.ID)
	})

	t.Run("empty details fall back to dash", func(t *testing.T) {
		req := buildCaseRequest(doc, models.ActionDelete, "", installation)
		assert.Contains(t, req.Description, "\n\n-\n")
		assert.Equal(t, "Infra DBPG-10000 delete Richard Watts", req.Subject)
	})
}
