package crm

import (
	"encoding/json"
	"errors"
	"net/mail"
	"strings"
	"time"
)

var ErrInvalidCustomer = errors.New("invalid customer")

// Customer is a lead or buyer in the CRM.
type Customer struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	AssignedTo       string     `json:"assignedTo,omitempty"`
	Status           string     `json:"status"`
	Temperature      string     `json:"temperature,omitempty"`
	Priority         string     `json:"priority,omitempty"`
	Financing        string     `json:"financing,omitempty"`
	Location         string     `json:"location,omitempty"`
	TrailerType      string     `json:"trailerType,omitempty"`
	TrailerSize      string     `json:"trailerSize,omitempty"`
	TrailerCondition string     `json:"trailerCondition,omitempty"`
	HasCreditApp     bool       `json:"hasCreditApp"`
	FollowUpAt       *time.Time `json:"followUpAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Validate normalizes and checks the fields a new customer needs.
func (c *Customer) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return errors.Join(ErrInvalidCustomer, errors.New("name is required"))
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return errors.Join(ErrInvalidCustomer, err)
		}
	}
	if c.Status == "" {
		c.Status = "new"
	}
	return nil
}

// SavedView is a named, bookmarked FilterState.
type SavedView struct {
	ID        string    `json:"id"`
	Owner     string    `json:"-"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter decodes the view's stored query.
func (v SavedView) Filter() (FilterState, error) {
	return ParseQuery(v.Query)
}

// ActivityRecord is a stored Activity with its row metadata.
type ActivityRecord struct {
	ID         int64    `json:"id"`
	CustomerID int64    `json:"customerId"`
	Activity   Activity `json:"-"`
}

// MarshalJSON flattens the activity fields next to the record ids.
func (r ActivityRecord) MarshalJSON() ([]byte, error) {
	body, err := MarshalActivity(r.Activity)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["id"], _ = json.Marshal(r.ID)
	fields["customerId"], _ = json.Marshal(r.CustomerID)
	return json.Marshal(fields)
}
