package daemon

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dbaasd/dbaasd/internal/connect"
	"github.com/dbaasd/dbaasd/internal/db"
	"github.com/dbaasd/dbaasd/internal/models"
	"github.com/dbaasd/dbaasd/internal/secrets"
)

const (
	timeLayout = time.RFC3339Nano

	// listPageSize is the batch size used when draining the store for a
	// list call. Callers always receive the full result set.
	listPageSize = 20

	// maxIDAttempts bounds id allocation retries on collision. Exhausting
	// the budget fails the create.
	maxIDAttempts = 3

	caseResolveTimeout = 30 * time.Second
)

// DatabaseManager owns the database resource lifecycle: creation with id
// allocation, the reviewing/active/reconfiguring/deleted state machine,
// caller-scoped reads, credential encryption, and helpdesk case
// orchestration against the provisioning platform.
type DatabaseManager struct {
	store    *db.Store
	platform connect.Client
	cipher   *secrets.Cipher
	metrics  *Metrics
	logger   *log.Logger

	idPrefix string
	idDigits int

	now  func() time.Time
	rand io.Reader

	// genID is replaced in tests to force collisions.
	genID func() (string, error)
}

// NewDatabaseManager constructs a manager. cipher may be nil; operations
// that need it fail with ErrCipherNotConfigured.
func NewDatabaseManager(store *db.Store, platform connect.Client, cipher *secrets.Cipher, idPrefix string, idDigits int, logger *log.Logger) *DatabaseManager {
	if logger == nil {
		logger = log.Default()
	}
	if idDigits <= 0 {
		idDigits = 5
	}
	m := &DatabaseManager{
		store:    store,
		platform: platform,
		cipher:   cipher,
		logger:   logger,
		idPrefix: idPrefix,
		idDigits: idDigits,
		now:      time.Now,
		rand:     rand.Reader,
	}
	m.genID = m.generateID
	return m
}

// WithMetrics attaches a metrics registry to the manager.
func (m *DatabaseManager) WithMetrics(metrics *Metrics) *DatabaseManager {
	m.metrics = metrics
	return m
}

// CreateInput is a database creation request.
type CreateInput struct {
	Name          string
	Description   string
	Workload      models.DatabaseWorkload
	RegionID      string
	TechContactID string
}

// UpdateInput carries the owner-editable fields. Nil fields are left
// unchanged; a field equal to its current value does not count as a
// change.
type UpdateInput struct {
	Name          *string
	Description   *string
	TechContactID *string
}

// ReconfigureInput requests a change to an active database. Action names
// what the follow-up helpdesk case asks for.
type ReconfigureInput struct {
	Action  string
	Details string
}

// ActivateInput applies the outcome of a provisioning request. An empty
// workload leaves the current one in place.
type ActivateInput struct {
	Workload    models.DatabaseWorkload
	Credentials *models.Credentials
}

// List returns every database visible to the caller, newest first.
// Deleted databases are excluded for everyone, admins included.
func (m *DatabaseManager) List(ctx context.Context, caller models.CallerContext) ([]DatabaseView, error) {
	filter := db.DatabaseFilter{ExcludeDeleted: true}
	if !caller.Admin() {
		if strings.TrimSpace(caller.AccountID) == "" {
			return nil, errors.New("account id is required")
		}
		filter.AccountID = caller.AccountID
	}
	views := []DatabaseView{}
	offset := 0
	for {
		page, err := m.store.ListDatabases(ctx, filter, listPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		for _, doc := range page {
			view, err := m.project(doc, false)
			if err != nil {
				return nil, err
			}
			views = append(views, view)
		}
		if len(page) < listPageSize {
			return views, nil
		}
		offset += listPageSize
	}
}

// Retrieve returns one database visible to the caller. Admin callers get
// decrypted credentials when the lifecycle state allows it.
func (m *DatabaseManager) Retrieve(ctx context.Context, id string, caller models.CallerContext) (DatabaseView, error) {
	doc, err := m.visibleDocument(ctx, id, caller)
	if err != nil {
		return DatabaseView{}, err
	}
	return m.project(doc, caller.Admin())
}

// Create allocates an id, persists a new document in reviewing state, and
// opens a helpdesk case for non-admin callers. Insert and case append
// happen in one transaction; a failed case creation rolls the insert
// back.
func (m *DatabaseManager) Create(ctx context.Context, input CreateInput, caller models.CallerContext) (DatabaseView, error) {
	if strings.TrimSpace(caller.AccountID) == "" {
		return DatabaseView{}, errors.New("account id is required")
	}
	if !models.ValidWorkload(input.Workload) {
		return DatabaseView{}, fmt.Errorf("unknown workload %q", input.Workload)
	}
	region, err := m.store.GetRegion(ctx, input.RegionID)
	if errors.Is(err, sql.ErrNoRows) {
		return DatabaseView{}, ErrRegionNotFound
	}
	if err != nil {
		return DatabaseView{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	contact, err := m.platform.GetAccountUser(ctx, caller.AccountID, input.TechContactID)
	if err != nil {
		return DatabaseView{}, fmt.Errorf("resolve technical contact: %w", err)
	}
	if !contact.Active {
		return DatabaseView{}, ErrInactiveTechContact
	}
	actor := contact
	if contact.ID != caller.UserID {
		actor, err = m.platform.GetAccountUser(ctx, caller.AccountID, caller.UserID)
		if err != nil {
			return DatabaseView{}, fmt.Errorf("resolve actor: %w", err)
		}
	}

	now := m.now().UTC()
	actorRef := actor.ActorRef()
	doc := models.Database{
		Name:        input.Name,
		Description: input.Description,
		Workload:    input.Workload,
		Status:      models.StatusReviewing,
		AccountID:   caller.AccountID,
		Region:      models.RegionRef{ID: region.ID, Name: region.Name},
		TechContact: contact.Ref(),
		Events: map[string]models.EventRecord{
			models.EventCreated: {At: now, By: &actorRef},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = m.store.WithTx(ctx, func(tx *sql.Tx) error {
		inserted := false
		for attempt := 1; attempt <= maxIDAttempts; attempt++ {
			id, err := m.genID()
			if err != nil {
				return fmt.Errorf("generate id: %w", err)
			}
			doc.ID = id
			err = m.store.InsertDatabaseTx(ctx, tx, doc)
			if err == nil {
				inserted = true
				break
			}
			if errors.Is(err, db.ErrDuplicateID) {
				m.metrics.IncIDRetry()
				m.logger.Printf("dbaasd: id %s already taken, regeneration attempt %d of %d", id, attempt, maxIDAttempts)
				continue
			}
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !inserted {
			return ErrIDGeneration
		}
		if caller.Admin() {
			return nil
		}
		installation, err := m.platform.GetInstallation(ctx, caller.InstallationID)
		if err != nil {
			return fmt.Errorf("resolve installation: %w", err)
		}
		opened, err := m.platform.CreateCase(ctx, buildCaseRequest(doc, models.ActionCreate, input.Description, installation))
		if err != nil {
			return fmt.Errorf("open helpdesk case: %w", err)
		}
		m.metrics.IncCaseOpened(models.ActionCreate)
		doc.Cases = append(doc.Cases, models.CaseRef{ID: opened.ID})
		if err := m.store.SetDatabaseCasesTx(ctx, tx, doc.ID, doc.Cases); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return DatabaseView{}, err
	}
	return m.project(doc, false)
}

// Update edits name, description, and technical contact. When nothing
// effectively changes, no write happens and no actor is resolved.
func (m *DatabaseManager) Update(ctx context.Context, id string, input UpdateInput, caller models.CallerContext) (DatabaseView, error) {
	doc, err := m.visibleDocument(ctx, id, caller)
	if err != nil {
		return DatabaseView{}, err
	}
	var patch db.DatabasePatch
	if input.Name != nil && *input.Name != doc.Name {
		patch.Name = input.Name
	}
	if input.Description != nil && *input.Description != doc.Description {
		patch.Description = input.Description
	}
	if input.TechContactID != nil && *input.TechContactID != doc.TechContact.ID {
		contact, err := m.platform.GetAccountUser(ctx, doc.AccountID, *input.TechContactID)
		if err != nil {
			return DatabaseView{}, fmt.Errorf("resolve technical contact: %w", err)
		}
		if !contact.Active {
			return DatabaseView{}, ErrInactiveTechContact
		}
		ref := contact.Ref()
		patch.TechContact = &ref
	}
	if patch.Empty() {
		return m.project(doc, false)
	}

	actorRef, err := m.actorRef(ctx, caller)
	if err != nil {
		return DatabaseView{}, err
	}
	now := m.now().UTC()
	events := copyEvents(doc.Events)
	events[models.EventUpdated] = models.EventRecord{At: now, By: actorRef}
	patch.Events = events

	if err := m.writePatch(ctx, id, patch); err != nil {
		return DatabaseView{}, err
	}
	if patch.Name != nil {
		doc.Name = *patch.Name
	}
	if patch.Description != nil {
		doc.Description = *patch.Description
	}
	if patch.TechContact != nil {
		doc.TechContact = *patch.TechContact
	}
	doc.Events = events
	doc.UpdatedAt = now
	return m.project(doc, false)
}

// Reconfigure moves an active database into reconfiguring and, for
// non-admin callers, opens a helpdesk case describing the request.
func (m *DatabaseManager) Reconfigure(ctx context.Context, id string, input ReconfigureInput, caller models.CallerContext) (DatabaseView, error) {
	doc, err := m.visibleDocument(ctx, id, caller)
	if err != nil {
		return DatabaseView{}, err
	}
	if doc.Status != models.StatusActive {
		return DatabaseView{}, ErrNotActive
	}
	action := input.Action
	if action == "" {
		action = models.ActionUpdate
	}
	if action != models.ActionUpdate && action != models.ActionDelete {
		return DatabaseView{}, fmt.Errorf("unknown action %q", action)
	}
	actorRef, err := m.actorRef(ctx, caller)
	if err != nil {
		return DatabaseView{}, err
	}

	now := m.now().UTC()
	events := copyEvents(doc.Events)
	events[models.EventReconfigured] = models.EventRecord{At: now, By: actorRef}
	status := models.StatusReconfiguring
	patch := db.DatabasePatch{Status: &status, Events: events}

	from := doc.Status
	doc.Status = status
	doc.Events = events
	if !caller.Admin() {
		installation, err := m.platform.GetInstallation(ctx, caller.InstallationID)
		if err != nil {
			return DatabaseView{}, fmt.Errorf("resolve installation: %w", err)
		}
		opened, err := m.platform.CreateCase(ctx, buildCaseRequest(doc, action, input.Details, installation))
		if err != nil {
			return DatabaseView{}, fmt.Errorf("open helpdesk case: %w", err)
		}
		m.metrics.IncCaseOpened(action)
		doc.Cases = append(doc.Cases, models.CaseRef{ID: opened.ID})
		patch.Cases = doc.Cases
	}
	if err := m.writePatch(ctx, id, patch); err != nil {
		return DatabaseView{}, err
	}
	doc.UpdatedAt = now
	m.metrics.IncTransition(from, status)
	return m.project(doc, false)
}

// Activate applies the outcome of provisioning: stores encrypted
// credentials, optionally applies a new workload, and asserts active
// status. An already-active database with nothing to apply is a pure
// no-op. The current helpdesk case, if any, is resolved in the
// background on success.
func (m *DatabaseManager) Activate(ctx context.Context, id string, input ActivateInput) (DatabaseView, error) {
	doc, err := m.document(ctx, id)
	if err != nil {
		return DatabaseView{}, err
	}
	if doc.Deleted() {
		return DatabaseView{}, ErrDatabaseDeleted
	}
	if input.Workload != "" && !models.ValidWorkload(input.Workload) {
		return DatabaseView{}, fmt.Errorf("unknown workload %q", input.Workload)
	}
	workloadChanged := input.Workload != "" && input.Workload != doc.Workload
	if input.Credentials == nil {
		if doc.Status == models.StatusReviewing {
			return DatabaseView{}, ErrCredentialsRequired
		}
		if doc.Status == models.StatusActive && !workloadChanged {
			return m.project(doc, true)
		}
	}

	var patch db.DatabasePatch
	if input.Credentials != nil {
		if m.cipher == nil {
			return DatabaseView{}, ErrCipherNotConfigured
		}
		blob, err := m.cipher.Encrypt(*input.Credentials)
		if err != nil {
			return DatabaseView{}, fmt.Errorf("encrypt credentials: %w", err)
		}
		patch.Credentials = blob
		doc.Credentials = blob
	}
	if workloadChanged {
		workload := input.Workload
		patch.Workload = &workload
		doc.Workload = workload
	}

	from := doc.Status
	status := models.StatusActive
	now := m.now().UTC()
	events := copyEvents(doc.Events)
	events[models.EventActivated] = models.EventRecord{At: now}
	patch.Status = &status
	patch.Events = events

	if err := m.writePatch(ctx, id, patch); err != nil {
		return DatabaseView{}, err
	}
	doc.Status = status
	doc.Events = events
	doc.UpdatedAt = now
	m.metrics.IncTransition(from, status)
	if current, ok := doc.CurrentCase(); ok {
		m.resolveCaseAsync(current.ID)
	}
	return m.project(doc, true)
}

// Delete soft-deletes a database. The state is terminal: the document
// disappears from every listing and rejects further mutation. The
// current helpdesk case, if any, is resolved in the background.
func (m *DatabaseManager) Delete(ctx context.Context, id string, caller models.CallerContext) (DatabaseView, error) {
	doc, err := m.visibleDocument(ctx, id, caller)
	if err != nil {
		return DatabaseView{}, err
	}
	from := doc.Status
	status := models.StatusDeleted
	now := m.now().UTC()
	events := copyEvents(doc.Events)
	events[models.EventDeleted] = models.EventRecord{At: now}
	patch := db.DatabasePatch{Status: &status, Events: events}

	if err := m.writePatch(ctx, id, patch); err != nil {
		return DatabaseView{}, err
	}
	doc.Status = status
	doc.Events = events
	doc.UpdatedAt = now
	m.metrics.IncTransition(from, status)
	if current, ok := doc.CurrentCase(); ok {
		m.resolveCaseAsync(current.ID)
	}
	return m.project(doc, false)
}

func (m *DatabaseManager) document(ctx context.Context, id string) (models.Database, error) {
	doc, err := m.store.GetDatabase(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Database{}, ErrDatabaseNotFound
	}
	if err != nil {
		return models.Database{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return doc, nil
}

func (m *DatabaseManager) visibleDocument(ctx context.Context, id string, caller models.CallerContext) (models.Database, error) {
	doc, err := m.document(ctx, id)
	if err != nil {
		return models.Database{}, err
	}
	if !canAccess(doc, caller) {
		return models.Database{}, ErrDatabaseNotFound
	}
	return doc, nil
}

// canAccess reports whether a caller may see a document. Deleted
// documents are invisible to everyone; non-admin callers only see their
// own account.
func canAccess(doc models.Database, caller models.CallerContext) bool {
	if doc.Deleted() {
		return false
	}
	if caller.Admin() {
		return true
	}
	return doc.AccountID != "" && doc.AccountID == caller.AccountID
}

func (m *DatabaseManager) writePatch(ctx context.Context, id string, patch db.DatabasePatch) error {
	err := m.store.UpdateDatabase(ctx, id, patch)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDatabaseNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (m *DatabaseManager) actorRef(ctx context.Context, caller models.CallerContext) (*models.ActorRef, error) {
	user, err := m.platform.GetAccountUser(ctx, caller.AccountID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	ref := user.ActorRef()
	return &ref, nil
}

// generateID builds <prefix>-<n digits>. Leading zeros are allowed, so
// the space is exactly 10^n ids per prefix.
func (m *DatabaseManager) generateID() (string, error) {
	buf := make([]byte, m.idDigits)
	if _, err := io.ReadFull(m.rand, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	digits := make([]byte, m.idDigits)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return m.idPrefix + "-" + string(digits), nil
}

// resolveCaseAsync closes a helpdesk case best-effort. Failures are
// logged and counted but never fail the triggering operation.
func (m *DatabaseManager) resolveCaseAsync(caseID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), caseResolveTimeout)
		defer cancel()
		if err := m.platform.ResolveCase(ctx, caseID); err != nil {
			m.logger.Printf("dbaasd: resolve case %s: %v", caseID, err)
			m.metrics.IncCaseResolution("error")
			return
		}
		m.metrics.IncCaseResolution("ok")
	}()
}

func copyEvents(events map[string]models.EventRecord) map[string]models.EventRecord {
	out := make(map[string]models.EventRecord, len(events)+1)
	for name, record := range events {
		out[name] = record
	}
	return out
}
