package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dbaasd/dbaasd/internal/buildinfo"
	"github.com/dbaasd/dbaasd/internal/connect"
	"github.com/dbaasd/dbaasd/internal/models"
)

const (
	maxJSONBytes = 1 << 20 // Maximum size for JSON request bodies (1MB)

	maxNameLength        = 128
	maxDescriptionLength = 512
	maxIDLength          = 32
)

// Caller identity headers. The control API trusts the fronting gateway
// to authenticate callers and forward their identity here.
const (
	headerAccountID      = "X-Account-Id"
	headerUserID         = "X-User-Id"
	headerCallType       = "X-Call-Type"
	headerInstallationID = "X-Installation-Id"
)

// ControlAPI handles control plane HTTP requests.
//
// Endpoints:
//   - GET    /v1/databases                  - List databases visible to the caller
//   - POST   /v1/databases                  - Request a new database
//   - GET    /v1/databases/{id}             - Get database details
//   - PUT    /v1/databases/{id}             - Edit name, description, tech contact
//   - DELETE /v1/databases/{id}             - Soft-delete a database
//   - POST   /v1/databases/{id}/reconfigure - Request a change to an active database
//   - POST   /v1/databases/{id}/activate    - Apply provisioning outcome (admin)
//   - GET    /v1/regions                    - List regions
//   - POST   /v1/regions                    - Add a region (admin)
//   - GET    /v1/regions/{id}               - Get region details
//   - GET    /v1/status                     - Control plane status summary
type ControlAPI struct {
	databases *DatabaseManager
	regions   *RegionService
	logger    *log.Logger
}

// NewControlAPI constructs the control API.
func NewControlAPI(databases *DatabaseManager, regions *RegionService, logger *log.Logger) *ControlAPI {
	if logger == nil {
		logger = log.Default()
	}
	return &ControlAPI{databases: databases, regions: regions, logger: logger}
}

// Register installs all control API routes on the mux.
func (api *ControlAPI) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/v1/databases", api.handleDatabases)
	mux.HandleFunc("/v1/databases/", api.handleDatabaseByID)
	mux.HandleFunc("/v1/regions", api.handleRegions)
	mux.HandleFunc("/v1/regions/", api.handleRegionByID)
	mux.HandleFunc("/v1/status", api.handleStatus)
}

func (api *ControlAPI) handleDatabases(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch r.Method {
	case http.MethodGet:
		views, err := api.databases.List(r.Context(), caller)
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, databaseListResponse{Databases: views})
	case http.MethodPost:
		var req databaseCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body", err)
			return
		}
		if err := validateCreateRequest(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		view, err := api.databases.Create(r.Context(), CreateInput{
			Name:          strings.TrimSpace(req.Name),
			Description:   req.Description,
			Workload:      models.DatabaseWorkload(req.Workload),
			RegionID:      req.Region.ID,
			TechContactID: req.TechContact.ID,
		}, caller)
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	default:
		writeMethodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
	}
}

func (api *ControlAPI) handleDatabaseByID(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, action, err := splitDatabasePath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "":
	case "activate":
		api.handleActivate(w, r, id, caller)
		return
	case "reconfigure":
		api.handleReconfigure(w, r, id, caller)
		return
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		view, err := api.databases.Retrieve(r.Context(), id, caller)
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		var req databaseUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body", err)
			return
		}
		input, err := updateInputFromRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		view, err := api.databases.Update(r.Context(), id, input, caller)
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		view, err := api.databases.Delete(r.Context(), id, caller)
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	default:
		writeMethodNotAllowed(w, []string{http.MethodGet, http.MethodPut, http.MethodDelete})
	}
}

func (api *ControlAPI) handleActivate(w http.ResponseWriter, r *http.Request, id string, caller models.CallerContext) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, []string{http.MethodPost})
		return
	}
	if !caller.Admin() {
		writeError(w, http.StatusForbidden, "admin call type is required")
		return
	}
	var req databaseActivateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", err)
		return
	}
	input := ActivateInput{Workload: models.DatabaseWorkload(req.Workload)}
	if req.Credentials != nil {
		if strings.TrimSpace(req.Credentials.Host) == "" ||
			strings.TrimSpace(req.Credentials.Username) == "" ||
			req.Credentials.Password == "" {
			writeError(w, http.StatusBadRequest, "credentials require host, username and password")
			return
		}
		creds := req.Credentials.model()
		input.Credentials = &creds
	}
	view, err := api.databases.Activate(r.Context(), id, input)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (api *ControlAPI) handleReconfigure(w http.ResponseWriter, r *http.Request, id string, caller models.CallerContext) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, []string{http.MethodPost})
		return
	}
	var req databaseReconfigureRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", err)
		return
	}
	if utf8.RuneCountInString(req.Details) > maxDescriptionLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("details must be at most %d characters", maxDescriptionLength))
		return
	}
	view, err := api.databases.Reconfigure(r.Context(), id, ReconfigureInput{
		Action:  req.Action,
		Details: req.Details,
	}, caller)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (api *ControlAPI) handleRegions(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch r.Method {
	case http.MethodGet:
		regions, err := api.regions.List(r.Context())
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		out := make([]regionResponse, 0, len(regions))
		for _, region := range regions {
			out = append(out, regionResponse{ID: region.ID, Name: region.Name})
		}
		writeJSON(w, http.StatusOK, regionListResponse{Regions: out})
	case http.MethodPost:
		if !caller.Admin() {
			writeError(w, http.StatusForbidden, "admin call type is required")
			return
		}
		var req regionCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body", err)
			return
		}
		if utf8.RuneCountInString(req.ID) > maxIDLength {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("region id must be at most %d characters", maxIDLength))
			return
		}
		region, err := api.regions.Create(r.Context(), models.Region{ID: req.ID, Name: req.Name})
		if err != nil {
			api.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, regionResponse{ID: region.ID, Name: region.Name})
	default:
		writeMethodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
	}
}

func (api *ControlAPI) handleRegionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, []string{http.MethodGet})
		return
	}
	if _, err := callerFromRequest(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/regions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "region id is required")
		return
	}
	region, err := api.regions.Retrieve(r.Context(), id)
	if errors.Is(err, ErrRegionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regionResponse{ID: region.ID, Name: region.Name})
}

func (api *ControlAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, []string{http.MethodGet})
		return
	}
	counts, err := api.databases.store.CountDatabasesByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status unavailable", err)
		return
	}
	databases := make(map[string]int, len(counts))
	for status, count := range counts {
		databases[string(status)] = count
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Version:   buildinfo.Version,
		Databases: databases,
	})
}

// writeDomainError maps engine errors onto HTTP statuses. Unrecognized
// errors become 500s with the detail preserved for operators.
func (api *ControlAPI) writeDomainError(w http.ResponseWriter, err error) {
	var apiErr *connect.APIError
	switch {
	case errors.Is(err, ErrDatabaseNotFound):
		writeError(w, http.StatusNotFound, ErrDatabaseNotFound.Error())
	case errors.Is(err, ErrRegionNotFound),
		errors.Is(err, ErrRegionExists),
		errors.Is(err, ErrInactiveTechContact),
		errors.Is(err, ErrNotActive),
		errors.Is(err, ErrCredentialsRequired),
		errors.Is(err, ErrDatabaseDeleted):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, connect.ErrNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr), errors.Is(err, connect.ErrOwnerUnknown):
		writeError(w, http.StatusBadGateway, "platform request failed", err)
	case errors.Is(err, ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrStoreUnavailable.Error())
	default:
		api.logger.Printf("dbaasd: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// callerFromRequest builds the caller context from identity headers. The
// call type defaults to user; non-admin callers must identify their
// account and user.
func callerFromRequest(r *http.Request) (models.CallerContext, error) {
	callType := strings.TrimSpace(r.Header.Get(headerCallType))
	if callType == "" {
		callType = string(models.CallTypeUser)
	}
	if callType != string(models.CallTypeUser) && callType != string(models.CallTypeAdmin) {
		return models.CallerContext{}, fmt.Errorf("unknown call type %q", callType)
	}
	caller := models.CallerContext{
		AccountID:      strings.TrimSpace(r.Header.Get(headerAccountID)),
		UserID:         strings.TrimSpace(r.Header.Get(headerUserID)),
		CallType:       models.CallType(callType),
		InstallationID: strings.TrimSpace(r.Header.Get(headerInstallationID)),
	}
	if !caller.Admin() {
		if caller.AccountID == "" {
			return models.CallerContext{}, fmt.Errorf("%s header is required", headerAccountID)
		}
		if caller.UserID == "" {
			return models.CallerContext{}, fmt.Errorf("%s header is required", headerUserID)
		}
	}
	return caller, nil
}

func validateCreateRequest(req databaseCreateRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	if utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLength)
	}
	if req.Workload == "" {
		return errors.New("workload is required")
	}
	if req.Region.ID == "" {
		return errors.New("region id is required")
	}
	if req.TechContact.ID == "" {
		return errors.New("tech contact id is required")
	}
	for _, id := range []string{req.Region.ID, req.TechContact.ID} {
		if utf8.RuneCountInString(id) > maxIDLength {
			return fmt.Errorf("ids must be at most %d characters", maxIDLength)
		}
	}
	return nil
}

func updateInputFromRequest(req databaseUpdateRequest) (UpdateInput, error) {
	input := UpdateInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return UpdateInput{}, errors.New("name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return UpdateInput{}, fmt.Errorf("name must be at most %d characters", maxNameLength)
		}
		input.Name = &name
	}
	if req.Description != nil && utf8.RuneCountInString(*req.Description) > maxDescriptionLength {
		return UpdateInput{}, fmt.Errorf("description must be at most %d characters", maxDescriptionLength)
	}
	if req.TechContact != nil {
		if req.TechContact.ID == "" {
			return UpdateInput{}, errors.New("tech contact id is required")
		}
		if utf8.RuneCountInString(req.TechContact.ID) > maxIDLength {
			return UpdateInput{}, fmt.Errorf("ids must be at most %d characters", maxIDLength)
		}
		input.TechContactID = &req.TechContact.ID
	}
	return input, nil
}

func splitDatabasePath(path string) (id, action string, err error) {
	rest := strings.TrimPrefix(path, "/v1/databases/")
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		id = parts[0]
	case 2:
		id, action = parts[0], parts[1]
	default:
		return "", "", errors.New("invalid path")
	}
	if id == "" {
		return "", "", errors.New("database id is required")
	}
	if utf8.RuneCountInString(id) > maxIDLength {
		return "", "", fmt.Errorf("ids must be at most %d characters", maxIDLength)
	}
	return id, action, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string, err ...error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]string{"error": msg}
	if len(err) > 0 {
		payload["details"] = err[0].Error()
	}
	data, _ := json.Marshal(payload)
	w.Write(data)
}

func writeMethodNotAllowed(w http.ResponseWriter, methods []string) {
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
