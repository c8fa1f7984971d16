// Package partner is the client and user directory consumed by the sales core.
package partner

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/erp/salesops/internal/domain/shared"
)

// ClientStatus represents the status of a client
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client is a customer that quotes and invoices are addressed to
type Client struct {
	shared.BaseAggregateRoot
	Name    string
	Company string
	Email   string
	Phone   string
	Status  ClientStatus
}

// NewClient creates an active client
func NewClient(name, company, email, phone string) (*Client, error) {
	c := &Client{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            ClientStatusActive,
	}
	if err := c.setDetails(name, company, email, phone); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces the contact details
func (c *Client) Update(name, company, email, phone string) error {
	if err := c.setDetails(name, company, email, phone); err != nil {
		return err
	}
	c.IncrementVersion()
	return nil
}

func (c *Client) setDetails(name, company, email, phone string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("name", "Client name is required")
	}
	if len(name) > 200 {
		return shared.NewValidationError("name", "Client name cannot exceed 200 characters")
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return shared.NewValidationError("email", "Invalid email address")
		}
	}
	c.Name = name
	c.Company = strings.TrimSpace(company)
	c.Email = email
	c.Phone = strings.TrimSpace(phone)
	return nil
}

// DisplayName is the company when present, otherwise the contact name
func (c *Client) DisplayName() string {
	if c.Company != "" {
		return c.Company
	}
	return c.Name
}

func (c *Client) IsActive() bool {
	return c.Status == ClientStatusActive
}

// Deactivate hides the client from new documents
func (c *Client) Deactivate() {
	c.Status = ClientStatusInactive
	c.IncrementVersion()
}

func (c *Client) Activate() {
	c.Status = ClientStatusActive
	c.IncrementVersion()
}

// User is a member of staff documents are attributed to
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Directory is the read-only lookup the sales core uses for attribution
type Directory interface {
	FindClient(ctx context.Context, id uuid.UUID) (*Client, error)
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// ClientRepository manages clients
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Client, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	Save(ctx context.Context, client *Client) error
}
