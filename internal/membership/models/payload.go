package models

import (
	"maps"
	"strconv"
	"strings"
)

// Payload keys shared by every onboarding step.
const (
	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldTelephone       = "telephone"
	FieldPostcode        = "postcode"
	FieldMembershipType  = "membershipType"
	FieldLAAStatus       = "laaStatus"
	FieldCognitoUsername = "cognitoUsername"
	FieldMemberID        = "memberId"
)

// RequiredFields are the submission fields every application must carry, in
// the order they are checked.
var RequiredFields = []string{
	FieldFullName,
	FieldEmail,
	FieldTelephone,
	FieldPostcode,
	FieldMembershipType,
}

// Payload is the JSON object handed from one onboarding step to the next.
// Steps only add keys; anything the caller sent is echoed back unchanged.
type Payload map[string]any

// Has reports whether key is present, regardless of its value.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value at key when it is a JSON string.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// NonEmpty returns the trimmed string at key and whether it is non-empty.
func (p Payload) NonEmpty(key string) (string, bool) {
	s, ok := p.String(key)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Bool reads a JSON boolean, also accepting the strings "true"/"false".
// Missing or unparseable values read as false.
func (p Payload) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

// With returns a copy of p with key set to value.
func (p Payload) With(key string, value any) Payload {
	out := make(Payload, len(p)+1)
	maps.Copy(out, p)
	out[key] = value
	return out
}
