package donor

import "time"

// Profile is the domain representation of a donor as seen by the compliance
// engine. The account subsystem owns these rows; this module only reads them.
// No JSON annotations so it can be reused by different presentation layers.
type Profile struct {
	ID                 string
	FullName           string
	Email              string
	AddressLine1       string
	City               string
	State              string
	Zip                string
	IsEmployed         bool
	Occupation         string
	Employer           string
	EmploymentVerified bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasFullName reports whether the FEC-mandated name field is populated.
func (p Profile) HasFullName() bool {
	return p.FullName != ""
}

// HasCompleteAddress reports whether every FEC-mandated address field is
// populated.
func (p Profile) HasCompleteAddress() bool {
	return p.AddressLine1 != "" && p.City != "" && p.State != "" && p.Zip != ""
}

// HasEmploymentDisclosure reports whether the occupation-or-employer
// requirement is satisfied. It is vacuously true for unemployed donors.
func (p Profile) HasEmploymentDisclosure() bool {
	if !p.IsEmployed {
		return true
	}
	return p.Occupation != "" || p.Employer != ""
}
