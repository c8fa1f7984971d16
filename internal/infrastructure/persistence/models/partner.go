package models

import (
	"github.com/erp/salesops/internal/domain/partner"
)

// ClientModel is the persistence model for the Client aggregate
type ClientModel struct {
	AggregateModel
	Name    string               `gorm:"type:varchar(200);not null"`
	Company string               `gorm:"type:varchar(200)"`
	Email   string               `gorm:"type:varchar(200);index"`
	Phone   string               `gorm:"type:varchar(50)"`
	Status  partner.ClientStatus `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *partner.Client {
	return &partner.Client{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Company:           m.Company,
		Email:             m.Email,
		Phone:             m.Phone,
		Status:            m.Status,
	}
}

// ClientModelFromDomain creates a new persistence model from a domain Client
func ClientModelFromDomain(c *partner.Client) *ClientModel {
	m := &ClientModel{
		Name:    c.Name,
		Company: c.Company,
		Email:   c.Email,
		Phone:   c.Phone,
		Status:  c.Status,
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}

// UserModel is the read-only staff directory row
type UserModel struct {
	BaseModel
	Name  string `gorm:"type:varchar(200);not null"`
	Email string `gorm:"type:varchar(200);uniqueIndex"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User
func (m *UserModel) ToDomain() *partner.User {
	return &partner.User{ID: m.ID, Name: m.Name, Email: m.Email}
}
