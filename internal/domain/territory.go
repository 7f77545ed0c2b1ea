package domain

import "time"

type Territory struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationID"`
	Name           string    `json:"name"`
	IsActive       bool      `json:"isActive"`
	PostalCodes    []string  `json:"postalCodes"`
	CreatedAt      time.Time `json:"createdAt"`
	Version        int32     `json:"-"`
}
