package models

import (
	"strconv"
	"time"

	id "membership/pkg/domain"
)

// RecordTypeMember discriminates membership records in the record type index.
const RecordTypeMember = "MEMBER"

// Applicant is the typed view of a submission that services work with.
// It is built from a Payload that has already passed validation, so fields
// are taken as-is.
type Applicant struct {
	FullName       string
	Email          string
	Telephone      string
	Postcode       string
	MembershipType id.MembershipType
	LAAStatus      bool

	// Set by earlier steps.
	IdentityRef string
	MemberID    id.MemberID
}

// ApplicantFromPayload reads the known keys of p. Missing keys stay zero.
func ApplicantFromPayload(p Payload) Applicant {
	a := Applicant{LAAStatus: p.Bool(FieldLAAStatus)}
	a.FullName, _ = p.String(FieldFullName)
	a.Email, _ = p.String(FieldEmail)
	a.Telephone, _ = p.String(FieldTelephone)
	a.Postcode, _ = p.String(FieldPostcode)
	a.IdentityRef, _ = p.String(FieldCognitoUsername)
	if t, ok := p.String(FieldMembershipType); ok {
		a.MembershipType = id.MembershipType(t)
	}
	if m, ok := p.String(FieldMemberID); ok {
		a.MemberID = id.MemberID(m)
	}
	return a
}

// LAAStatusString is the lower-case form mirrored into the identity record
// and stored on the membership record.
func (a Applicant) LAAStatusString() string {
	return strconv.FormatBool(a.LAAStatus)
}

// Record is a persisted membership. Partition and sort key both equal the
// member id; RecordType feeds the descending counter lookup.
type Record struct {
	PK               string              `dynamodbav:"PK" json:"pk"`
	SK               string              `dynamodbav:"SK" json:"sk"`
	FullName         string              `dynamodbav:"fullName" json:"fullName"`
	Email            string              `dynamodbav:"email" json:"email"`
	Telephone        string              `dynamodbav:"telephone" json:"telephone"`
	Postcode         string              `dynamodbav:"postcode" json:"postcode"`
	MembershipType   string              `dynamodbav:"membershipType" json:"membershipType"`
	LAAStatus        string              `dynamodbav:"laaStatus" json:"laaStatus"`
	MembershipStatus id.MembershipStatus `dynamodbav:"membershipStatus" json:"membershipStatus"`
	RecordType       string              `dynamodbav:"recordType" json:"recordType"`
	CreatedAt        time.Time           `dynamodbav:"createdAt" json:"createdAt"`
}

// NewRecord builds a PENDING membership record for applicant under memberID.
func NewRecord(memberID id.MemberID, a Applicant, now time.Time) Record {
	return Record{
		PK:               memberID.String(),
		SK:               memberID.String(),
		FullName:         a.FullName,
		Email:            a.Email,
		Telephone:        a.Telephone,
		Postcode:         a.Postcode,
		MembershipType:   a.MembershipType.String(),
		LAAStatus:        a.LAAStatusString(),
		MembershipStatus: id.MembershipStatusPending,
		RecordType:       RecordTypeMember,
		CreatedAt:        now.UTC(),
	}
}

func (r Record) MemberID() id.MemberID {
	return id.MemberID(r.PK)
}
