package daemon

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/dbaasd/dbaasd/internal/connect"
	"github.com/dbaasd/dbaasd/internal/db"
	"github.com/dbaasd/dbaasd/internal/models"
	"github.com/dbaasd/dbaasd/internal/secrets"
	testutil "github.com/dbaasd/dbaasd/internal/testing"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

var (
	userCaller = models.CallerContext{
		AccountID:      "VA-001",
		UserID:         "UR-100",
		CallType:       models.CallTypeUser,
		InstallationID: "EIN-001",
	}
	otherCaller = models.CallerContext{
		AccountID:      "VA-002",
		UserID:         "UR-300",
		CallType:       models.CallTypeUser,
		InstallationID: "EIN-001",
	}
	adminCaller = models.CallerContext{
		AccountID: "PA-000",
		UserID:    "UR-900",
		CallType:  models.CallTypeAdmin,
	}
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

type testEnv struct {
	store *db.Store
	fake  *testutil.FakeConnectClient
	mgr   *DatabaseManager
}

// newTestEnv builds a manager over a fresh store with one region, a few
// platform users, and an installation owned by PA-900.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertRegion(ctx, models.Region{ID: "eu-west", Name: "Europe West"}))

	fake := testutil.NewFakeConnectClient()
	fake.AddUser("VA-001", connect.User{ID: "UR-100", Name: "Nadia Petrov", Email: "nadia@example.com", Active: true})
	fake.AddUser("VA-001", connect.User{ID: "UR-101", Name: "Omar Haddad", Email: "omar@example.com", Active: true})
	fake.AddUser("VA-001", connect.User{ID: "UR-102", Name: "Former Employee", Active: false})
	fake.AddUser("VA-002", connect.User{ID: "UR-300", Name: "Lena Fischer", Active: true})
	fake.AddUser("VA-002", connect.User{ID: "UR-100", Name: "Nadia Petrov", Email: "nadia@example.com", Active: true})
	fake.AddUser("PA-000", connect.User{ID: "UR-900", Name: "Platform Operator", Active: true})
	fake.AddUser("VA-001", connect.User{ID: "UR-900", Name: "Platform Operator", Active: true})
	fake.AddInstallation(connect.Installation{ID: "EIN-001", OwnerAccountID: "PA-900"})

	cipher, err := secrets.NewCipher(testKey)
	require.NoError(t, err)

	mgr := NewDatabaseManager(store, fake, cipher, "DBPG", 5, log.New(io.Discard, "", 0))
	return &testEnv{store: store, fake: fake, mgr: mgr}
}

func createInput() CreateInput {
	return CreateInput{
		Name:          "orders",
		Description:   "orders service backend",
		Workload:      models.WorkloadSmall,
		RegionID:      "eu-west",
		TechContactID: "UR-100",
	}
}

// mustCreate creates a database as the given caller and returns its view.
func (e *testEnv) mustCreate(t *testing.T, input CreateInput, caller models.CallerContext) DatabaseView {
	t.Helper()
	view, err := e.mgr.Create(context.Background(), input, caller)
	require.NoError(t, err)
	return view
}

// patchCredentials builds a store patch that only swaps the encrypted
// credentials blob.
func patchCredentials(blob []byte) db.DatabasePatch {
	return db.DatabasePatch{Credentials: blob}
}

// mustActivate moves a database to active with fresh credentials.
func (e *testEnv) mustActivate(t *testing.T, id string) DatabaseView {
	t.Helper()
	view, err := e.mgr.Activate(context.Background(), id, ActivateInput{
		Credentials: &models.Credentials{
			Host:     "pg.example.com",
			Username: "orders",
			Password: "s3cret",
			Name:     "orders",
		},
	})
	require.NoError(t, err)
	return view
}
