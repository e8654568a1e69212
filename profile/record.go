// Package profile extracts a normalized company record from a rendered profile page
package profile

import (
	"errors"
	"fmt"
)

// Column names of a record, in output order
const (
	FieldCode                = "code"
	FieldCompanyName         = "company_name"
	FieldMarket              = "market"
	FieldFeature             = "feature"
	FieldBusinessComposition = "business_composition"
	FieldIndustries          = "industries"
	FieldThemes              = "themes"
)

// Fields is the fixed column order of a record
var Fields = []string{
	FieldCode,
	FieldCompanyName,
	FieldMarket,
	FieldFeature,
	FieldBusinessComposition,
	FieldIndustries,
	FieldThemes,
}

// Record is one row of output. Every field is whitespace-normalized.
type Record struct {
	Code                string `json:"code"`
	CompanyName         string `json:"company_name"`
	Market              string `json:"market"`
	Feature             string `json:"feature"`
	BusinessComposition string `json:"business_composition"`
	Industries          string `json:"industries"`
	Themes              string `json:"themes"`
}

// Get returns the value of a column, or "" for an unknown name
func (r Record) Get(field string) string {
	switch field {
	case FieldCode:
		return r.Code
	case FieldCompanyName:
		return r.CompanyName
	case FieldMarket:
		return r.Market
	case FieldFeature:
		return r.Feature
	case FieldBusinessComposition:
		return r.BusinessComposition
	case FieldIndustries:
		return r.Industries
	case FieldThemes:
		return r.Themes
	}
	return ""
}

// Values returns the record's values for the given columns, in that order
func (r Record) Values(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = r.Get(f)
	}
	return out
}

// Map returns the record keyed by column name
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(Fields))
	for _, f := range Fields {
		m[f] = r.Get(f)
	}
	return m
}

// ErrNotFound marks a profile that does not exist and will not appear on retry
var ErrNotFound = errors.New("profile not found")

// NotFoundError is returned by renderers when the page answers with a permanent status
type NotFoundError struct {
	Code   string
	Status int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("HTTP %d for code %s", e.Status, e.Code)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsPermanentStatus reports whether an HTTP status means the profile is gone for good
func IsPermanentStatus(status int) bool {
	return status == 404 || status == 410
}

// CheckStatus converts a permanent status into a NotFoundError
func CheckStatus(code string, status int) error {
	if IsPermanentStatus(status) {
		return &NotFoundError{Code: code, Status: status}
	}
	return nil
}
