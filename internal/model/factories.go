package model

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewContact creates a new Contact instance with default fake data.
func NewContact(overrideDefaults ...*Contact) *Contact {
	person := gofakeit.Person()
	phone := "+1" + gofakeit.Numerify("##########")
	base := &Contact{
		ID:          phone,
		FirstName:   person.FirstName,
		LastName:    person.LastName,
		Name:        person.FirstName + " " + person.LastName,
		PhoneNumber: phone,
		Email:       person.Contact.Email,
		CompanyName: gofakeit.Company(),
		LeadSource:  gofakeit.RandomString([]string{"webinar", "ebook", "referral", "import"}),
		City:        person.Address.City,
		State:       person.Address.State,
		Country:     "US",
		Timezone:    gofakeit.TimeZoneRegion(),
		Notes:       gofakeit.Sentence(8),
		Tags:        []string{gofakeit.BuzzWord(), gofakeit.BuzzWord()},
		AvatarURL:   gofakeit.ImageURL(100, 100),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		// Allow overriding with empty string by direct assignment
		base.ID = ovr.ID
		base.FirstName = ovr.FirstName
		base.LastName = ovr.LastName
		base.Name = ovr.Name
		base.PhoneNumber = ovr.PhoneNumber
		base.Email = ovr.Email
		base.CompanyName = ovr.CompanyName
		base.City = ovr.City
		base.State = ovr.State

		if ovr.Tags != nil {
			base.Tags = ovr.Tags
		}
	}
	return base
}

// NewContacts creates n contacts with unique fake phone-number ids.
func NewContacts(n int) []Contact {
	contacts := make([]Contact, 0, n)
	seen := make(map[string]struct{}, n)
	for len(contacts) < n {
		c := NewContact()
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		contacts = append(contacts, *c)
	}
	return contacts
}

// NewUpsertContactPayload creates a valid payload with fake data.
func NewUpsertContactPayload() UpsertContactPayload {
	c := NewContact()
	return UpsertContactPayload{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		CompanyName: c.CompanyName,
		City:        c.City,
		State:       c.State,
		Tags:        c.Tags,
	}
}
