package model

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Contact is a person reachable by phone or SMS. ID is an opaque unique key;
// in call-log sourced data it is the phone number itself.
type Contact struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Name        string   `json:"name,omitempty"`
	PhoneNumber string   `json:"phone_number"`
	Email       string   `json:"email,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	LeadSource  string   `json:"lead_source,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
}

// Clone returns a copy of c that shares no slices with it.
func (c Contact) Clone() Contact {
	c.Tags = slices.Clone(c.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

// DisplayName returns Name, or the first/last name pair, or the phone number.
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if full := strings.TrimSpace(c.FirstName + " " + c.LastName); full != "" {
		return full
	}
	return c.PhoneNumber
}

// ToPayload converts c into the wire shape of a contact mutation.
func (c Contact) ToPayload() UpsertContactPayload {
	c = c.Clone()
	return UpsertContactPayload{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		CompanyName: c.CompanyName,
		LeadSource:  c.LeadSource,
		City:        c.City,
		State:       c.State,
		Country:     c.Country,
		Timezone:    c.Timezone,
		Notes:       c.Notes,
		Tags:        c.Tags,
		AvatarURL:   c.AvatarURL,
	}
}

// UpsertContactPayload is the inbound shape of a contact mutation coming from
// the HTTP API or the contact event stream.
type UpsertContactPayload struct {
	ID          string   `json:"id" validate:"required"`
	FirstName   string   `json:"first_name,omitempty" validate:"omitempty,max=255"`
	LastName    string   `json:"last_name,omitempty" validate:"omitempty,max=255"`
	Name        string   `json:"name,omitempty" validate:"omitempty,max=255"`
	PhoneNumber string   `json:"phone_number" validate:"required,phone"`
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
	CompanyName string   `json:"company_name,omitempty"`
	LeadSource  string   `json:"lead_source,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
	AvatarURL   string   `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// ToContact converts the payload into a Contact snapshot.
func (p UpsertContactPayload) ToContact() Contact {
	return Contact{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Name:        p.Name,
		PhoneNumber: p.PhoneNumber,
		Email:       p.Email,
		CompanyName: p.CompanyName,
		LeadSource:  p.LeadSource,
		City:        p.City,
		State:       p.State,
		Country:     p.Country,
		Timezone:    p.Timezone,
		Notes:       p.Notes,
		Tags:        p.Tags,
		AvatarURL:   p.AvatarURL,
	}.Clone()
}

// ContactRecord is the row shape of the tenant contacts table. It is only read.
type ContactRecord struct {
	ID          string         `gorm:"primaryKey;type:text"`
	FirstName   string         `gorm:"type:text"`
	LastName    string         `gorm:"type:text"`
	Name        string         `gorm:"type:text"`
	PhoneNumber string         `gorm:"type:text;index"`
	Email       string         `gorm:"type:text"`
	CompanyName string         `gorm:"type:text"`
	LeadSource  string         `gorm:"type:text"`
	City        string         `gorm:"type:text"`
	State       string         `gorm:"type:text"`
	Country     string         `gorm:"type:text"`
	Timezone    string         `gorm:"type:text"`
	Notes       string         `gorm:"type:text"`
	Tags        datatypes.JSON `gorm:"type:jsonb"`
	AvatarURL   string         `gorm:"type:text"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for ContactRecord, respecting the Namer.
func (ContactRecord) TableName(namer schema.Namer) string {
	return namer.TableName("contacts")
}

// ToContact converts the row into a Contact. A malformed tags column yields
// an empty tag set rather than an error.
func (r ContactRecord) ToContact() Contact {
	tags := []string{}
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &tags); err != nil || tags == nil {
			tags = []string{}
		}
	}
	return Contact{
		ID:          r.ID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Name:        r.Name,
		PhoneNumber: r.PhoneNumber,
		Email:       r.Email,
		CompanyName: r.CompanyName,
		LeadSource:  r.LeadSource,
		City:        r.City,
		State:       r.State,
		Country:     r.Country,
		Timezone:    r.Timezone,
		Notes:       r.Notes,
		Tags:        tags,
		AvatarURL:   r.AvatarURL,
	}
}
