package lifecycle

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/models"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxNameLength        = 100
	minAge               = 0
	maxAge               = 150
	defaultCountry       = "United States"
)

var lastSeenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

type requiredField struct {
	name    string
	present bool
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// missingFields lists absent or blank required fields in form order.
func missingFields(in models.CaseInput) []string {
	checks := []requiredField{
		{"missingPerson.name", !blank(in.MissingPerson.Name)},
		{"missingPerson.age", in.MissingPerson.Age.Set},
		{"missingPerson.gender", !blank(in.MissingPerson.Gender)},
		{"description", !blank(in.Description)},
		{"lastKnownLocation.address", !blank(in.LastKnownLocation.Address)},
		{"lastKnownLocation.city", !blank(in.LastKnownLocation.City)},
		{"lastKnownLocation.state", !blank(in.LastKnownLocation.State)},
		{"lastSeenDate", !blank(in.LastSeenDate)},
		{"contactInfo.primaryContact.name", !blank(in.ContactInfo.PrimaryContact.Name)},
		{"contactInfo.primaryContact.phone", !blank(in.ContactInfo.PrimaryContact.Phone)},
	}
	var missing []string
	for _, c := range checks {
		if !c.present {
			missing = append(missing, c.name)
		}
	}
	return missing
}

func parseLastSeen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range lastSeenLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// buildCase validates in and returns the case it describes, without identity, number,
// lifecycle fields or timestamps.
func buildCase(in models.CaseInput) (models.Case, error) {
	if missing := missingFields(in); len(missing) > 0 {
		return models.Case{}, apperrors.MissingFields(missing...)
	}

	var fields, messages []string
	invalid := func(field, message string) {
		fields = append(fields, field)
		messages = append(messages, message)
	}

	name := strings.TrimSpace(in.MissingPerson.Name)
	if utf8.RuneCountInString(name) > maxNameLength {
		invalid("missingPerson.name", "Name cannot exceed 100 characters")
	}
	age := in.MissingPerson.Age.Value
	if in.MissingPerson.Age.Invalid {
		invalid("missingPerson.age", "Age must be a whole number")
	} else if age < minAge {
		invalid("missingPerson.age", "Age cannot be negative")
	}
	if age > maxAge {
		invalid("missingPerson.age", "Age cannot exceed 150")
	}
	gender := models.Gender(strings.TrimSpace(in.MissingPerson.Gender))
	switch gender {
	case models.GenderMale, models.GenderFemale, models.GenderOther:
	default:
		invalid("missingPerson.gender", "Gender must be one of: male, female, other")
	}
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		invalid("title", "Title cannot exceed 200 characters")
	}
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		invalid("description", "Description cannot exceed 2000 characters")
	}
	lastSeen, ok := parseLastSeen(in.LastSeenDate)
	if !ok {
		invalid("lastSeenDate", "Last seen date is not a valid date")
	}

	priority := models.Priority(strings.TrimSpace(in.Priority))
	switch priority {
	case "":
		priority = models.PriorityMedium
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
	default:
		invalid("priority", "Priority must be one of: low, medium, high, critical")
	}
	category := models.Category(strings.TrimSpace(in.Category))
	switch category {
	case "":
		category = models.CategoryMissingPerson
	case models.CategoryMissingPerson, models.CategoryRunaway, models.CategoryOther:
	default:
		invalid("category", "Category must be one of: missing-person, runaway, other")
	}

	if len(fields) > 0 {
		return models.Case{}, apperrors.Validation("Validation error: "+strings.Join(messages, "; "), fields...)
	}

	country := strings.TrimSpace(in.LastKnownLocation.Country)
	if country == "" {
		country = defaultCountry
	}
	photos := in.MissingPerson.Photos
	if photos == nil {
		photos = []models.Photo{}
	}
	contact := in.ContactInfo.PrimaryContact

	return models.Case{
		Title:       title,
		Description: description,
		MissingPerson: models.MissingPerson{
			Name:                   name,
			Age:                    age,
			Gender:                 gender,
			Height:                 in.MissingPerson.Height,
			Weight:                 in.MissingPerson.Weight,
			HairColor:              in.MissingPerson.HairColor,
			EyeColor:               in.MissingPerson.EyeColor,
			DistinguishingFeatures: in.MissingPerson.DistinguishingFeatures,
			LastSeenClothing:       in.LastSeenClothing,
			Photos:                 photos,
		},
		LastKnownLocation: models.Location{
			Address: strings.TrimSpace(in.LastKnownLocation.Address),
			City:    strings.TrimSpace(in.LastKnownLocation.City),
			State:   strings.TrimSpace(in.LastKnownLocation.State),
			Country: country,
			ZipCode: in.LastKnownLocation.ZipCode,
		},
		LastSeenDate:  lastSeen,
		LastSeenTime:  in.LastSeenTime,
		Circumstances: in.Circumstances,
		ContactInfo: models.ContactInfo{
			PrimaryContact: models.Contact{
				Name:         strings.TrimSpace(contact.Name),
				Relationship: contact.Relationship,
				Phone:        strings.TrimSpace(contact.Phone),
				Email:        strings.TrimSpace(contact.Email),
			},
		},
		Priority: priority,
		Category: category,
	}, nil
}
