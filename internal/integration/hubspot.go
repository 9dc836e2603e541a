package integration

import (
	"context"
	"fmt"
	"time"
)

// HubSpotClient implements the CRM collaborator against the HubSpot
// v3 objects API.
type HubSpotClient struct {
	backend *httpBackend
}

var _ CRM = (*HubSpotClient)(nil)

func NewHubSpotClient(cfg ClientConfig) *HubSpotClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.hubapi.com"
	}
	return &HubSpotClient{backend: newHTTPBackend("hubspot", cfg)}
}

type hubspotSearchRequest struct {
	FilterGroups []hubspotFilterGroup `json:"filterGroups"`
	Properties   []string             `json:"properties"`
	Limit        int                  `json:"limit"`
}

type hubspotFilterGroup struct {
	Filters []hubspotFilter `json:"filters"`
}

type hubspotFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type hubspotContact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type hubspotSearchResponse struct {
	Total   int              `json:"total"`
	Results []hubspotContact `json:"results"`
}

func (c *HubSpotClient) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	req := hubspotSearchRequest{
		FilterGroups: []hubspotFilterGroup{{
			Filters: []hubspotFilter{{
				PropertyName: "email",
				Operator:     "EQ",
				Value:        email,
			}},
		}},
		Properties: []string{"email", "firstname", "lastname"},
		Limit:      1,
	}

	var out hubspotSearchResponse
	if err := c.backend.doJSON(ctx, "POST", "/crm/v3/objects/contacts/search", req, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return contactFromHubSpot(out.Results[0]), nil
}

type hubspotCreateRequest struct {
	Properties map[string]string `json:"properties"`
}

func (c *HubSpotClient) CreateContact(ctx context.Context, fields ContactFields) (*Contact, error) {
	props := map[string]string{"email": fields.Email}
	if fields.FirstName != "" {
		props["firstname"] = fields.FirstName
	}
	if fields.LastName != "" {
		props["lastname"] = fields.LastName
	}
	if fields.Company != "" {
		props["company"] = fields.Company
	}

	var out hubspotContact
	if err := c.backend.doJSON(ctx, "POST", "/crm/v3/objects/contacts", hubspotCreateRequest{Properties: props}, &out); err != nil {
		return nil, err
	}
	return contactFromHubSpot(out), nil
}

type hubspotNoteRequest struct {
	Properties   map[string]string    `json:"properties"`
	Associations []hubspotAssociation `json:"associations"`
}

type hubspotAssociation struct {
	To    hubspotAssociationTarget `json:"to"`
	Types []hubspotAssociationType `json:"types"`
}

type hubspotAssociationTarget struct {
	ID string `json:"id"`
}

type hubspotAssociationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

// note-to-contact association type in HubSpot's defined set
const hubspotNoteToContactTypeID = 202

func (c *HubSpotClient) AddNote(ctx context.Context, contactID, text string) error {
	req := hubspotNoteRequest{
		Properties: map[string]string{
			"hs_note_body": text,
			"hs_timestamp": fmt.Sprintf("%d", time.Now().UnixMilli()),
		},
		Associations: []hubspotAssociation{{
			To: hubspotAssociationTarget{ID: contactID},
			Types: []hubspotAssociationType{{
				AssociationCategory: "HUBSPOT_DEFINED",
				AssociationTypeID:   hubspotNoteToContactTypeID,
			}},
		}},
	}
	return c.backend.doJSON(ctx, "POST", "/crm/v3/objects/notes", req, nil)
}

func contactFromHubSpot(h hubspotContact) *Contact {
	return &Contact{
		ID:        h.ID,
		Email:     h.Properties["email"],
		FirstName: h.Properties["firstname"],
		LastName:  h.Properties["lastname"],
	}
}
