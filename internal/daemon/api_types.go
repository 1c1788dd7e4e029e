package daemon

import "github.com/dbaasd/dbaasd/internal/models"

// refPayload is a bare {"id": ...} reference in request bodies.
type refPayload struct {
	ID string `json:"id"`
}

type databaseCreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Workload    string     `json:"workload"`
	Region      refPayload `json:"region"`
	TechContact refPayload `json:"tech_contact"`
}

type databaseUpdateRequest struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	TechContact *refPayload `json:"tech_contact,omitempty"`
}

type databaseReconfigureRequest struct {
	Action  string `json:"action,omitempty"`
	Details string `json:"details,omitempty"`
}

type credentialsPayload struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type databaseActivateRequest struct {
	Workload    string              `json:"workload,omitempty"`
	Credentials *credentialsPayload `json:"credentials,omitempty"`
}

type regionCreateRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type regionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type databaseListResponse struct {
	Databases []DatabaseView `json:"databases"`
}

type regionListResponse struct {
	Regions []regionResponse `json:"regions"`
}

type statusResponse struct {
	Version   string         `json:"version"`
	Databases map[string]int `json:"databases"`
}

func (c credentialsPayload) model() models.Credentials {
	return models.Credentials{
		Host:     c.Host,
		Username: c.Username,
		Password: c.Password,
		Name:     c.Name,
	}
}
