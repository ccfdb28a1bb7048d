// Package validation checks applicant submissions before any side effect runs.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"membership/internal/membership/models"
	id "membership/pkg/domain"
	dErrors "membership/pkg/domain-errors"
)

var (
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	telephonePattern = regexp.MustCompile(`^[\d\s\-+()]{10,}$`)
	postcodePattern  = regexp.MustCompile(`(?i)^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`)
)

// Validate applies the submission rules in order and stops at the first
// failure. The returned error has CodeValidation and a caller-facing reason.
func Validate(p models.Payload) error {
	for _, field := range models.RequiredFields {
		if !p.Has(field) {
			return dErrors.New(dErrors.CodeValidation, "Missing required field: "+field)
		}
	}

	name, _ := p.String(models.FieldFullName)
	if !validFullName(name) {
		return dErrors.New(dErrors.CodeValidation, "Invalid full name")
	}

	email, _ := p.String(models.FieldEmail)
	if !emailPattern.MatchString(email) {
		return dErrors.New(dErrors.CodeValidation, "Invalid email address")
	}

	phone, _ := p.String(models.FieldTelephone)
	if !telephonePattern.MatchString(phone) {
		return dErrors.New(dErrors.CodeValidation, "Invalid telephone number")
	}

	postcode, _ := p.String(models.FieldPostcode)
	if !postcodePattern.MatchString(postcode) {
		return dErrors.New(dErrors.CodeValidation, "Invalid UK postcode")
	}

	membershipType, _ := p.String(models.FieldMembershipType)
	if !id.MembershipType(membershipType).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "Invalid membership type")
	}

	return nil
}

func validFullName(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= 2
}
