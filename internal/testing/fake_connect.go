package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbaasd/dbaasd/internal/connect"
)

// FakeConnectClient is an in-memory implementation of connect.Client for
// tests. Users and installations are registered up front; created cases
// get sequential ids and every call is recorded.
type FakeConnectClient struct {
	mu sync.Mutex

	Users         map[string]connect.User // keyed by accountID/userID
	Installations map[string]connect.Installation

	UserErr        error
	InstallErr     error
	CreateCaseErr  error
	ResolveCaseErr error

	UserCalls     []string
	InstallCalls  []string
	CreatedCases  []connect.CaseRequest
	ResolvedCases []string

	nextCase int
}

var _ connect.Client = (*FakeConnectClient)(nil)

// NewFakeConnectClient returns an empty fake.
func NewFakeConnectClient() *FakeConnectClient {
	return &FakeConnectClient{
		Users:         make(map[string]connect.User),
		Installations: make(map[string]connect.Installation),
	}
}

// AddUser registers a user under an account.
func (f *FakeConnectClient) AddUser(accountID string, user connect.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[accountID+"/"+user.ID] = user
}

// AddInstallation registers an installation.
func (f *FakeConnectClient) AddInstallation(installation connect.Installation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Installations[installation.ID] = installation
}

func (f *FakeConnectClient) GetAccountUser(ctx context.Context, accountID, userID string) (connect.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserCalls = append(f.UserCalls, accountID+"/"+userID)
	if f.UserErr != nil {
		return connect.User{}, f.UserErr
	}
	user, ok := f.Users[accountID+"/"+userID]
	if !ok {
		return connect.User{}, fmt.Errorf("user %s in %s: %w", userID, accountID, connect.ErrNotFound)
	}
	return user, nil
}

func (f *FakeConnectClient) GetInstallation(ctx context.Context, installationID string) (connect.Installation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InstallCalls = append(f.InstallCalls, installationID)
	if f.InstallErr != nil {
		return connect.Installation{}, f.InstallErr
	}
	installation, ok := f.Installations[installationID]
	if !ok {
		return connect.Installation{}, fmt.Errorf("installation %s: %w", installationID, connect.ErrNotFound)
	}
	return installation, nil
}

func (f *FakeConnectClient) CreateCase(ctx context.Context, req connect.CaseRequest) (connect.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateCaseErr != nil {
		return connect.Case{}, f.CreateCaseErr
	}
	f.CreatedCases = append(f.CreatedCases, req)
	f.nextCase++
	return connect.Case{ID: fmt.Sprintf("CA-%03d", f.nextCase)}, nil
}

func (f *FakeConnectClient) ResolveCase(ctx context.Context, caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ResolveCaseErr != nil {
		return f.ResolveCaseErr
	}
	f.ResolvedCases = append(f.ResolvedCases, caseID)
	return nil
}

// Resolved returns a copy of the resolved-case ids, safe to inspect while
// background resolution goroutines run.
func (f *FakeConnectClient) Resolved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ResolvedCases))
	copy(out, f.ResolvedCases)
	return out
}
