package models

import (
	"encoding/json"
	"time"
)

// Location is the jsonb current_location column.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// User is a directory profile. The id is assigned by the external identity
// provider at registration time.
type User struct {
	ID                string          `db:"id" json:"id"`
	Email             string          `db:"email" json:"email"`
	FirstName         string          `db:"first_name" json:"firstName"`
	LastName          string          `db:"last_name" json:"lastName"`
	VisaType          string          `db:"visa_type" json:"visaType"`
	Occupation        string          `db:"occupation" json:"occupation"`
	Employer          string          `db:"employer" json:"employer"`
	CurrentLocation   json.RawMessage `db:"current_location" json:"currentLocation,omitempty"`
	ProfilePhotoURL   string          `db:"profile_photo_url" json:"profilePhotoUrl"`
	Bio               string          `db:"bio" json:"bio"`
	Nationality       string          `db:"nationality" json:"nationality"`
	MentorshipOffered bool            `db:"mentorship_offered" json:"mentorshipOffered"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// ChatUser is the slice of a profile the messaging views embed.
type ChatUser struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	Occupation      string `json:"occupation,omitempty"`
	VisaType        string `json:"visaType,omitempty"`
}

// ChatProfile projects a full profile down to the fields messaging shows.
func (u User) ChatProfile() ChatUser {
	return ChatUser{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfilePhotoURL: u.ProfilePhotoURL,
		Occupation:      u.Occupation,
		VisaType:        u.VisaType,
	}
}

// profileFields are the optional columns counted toward profile completion.
var profileFields = []func(User) bool{
	func(u User) bool { return u.FirstName != "" },
	func(u User) bool { return u.LastName != "" },
	func(u User) bool { return u.VisaType != "" },
	func(u User) bool { return u.Occupation != "" },
	func(u User) bool { return u.Employer != "" },
	func(u User) bool { return len(u.CurrentLocation) > 0 },
	func(u User) bool { return u.ProfilePhotoURL != "" },
	func(u User) bool { return u.Bio != "" },
	func(u User) bool { return u.Nationality != "" },
}

// CompletionPercent derives how much of the profile wizard has been filled in.
func (u User) CompletionPercent() int {
	filled := 0
	for _, set := range profileFields {
		if set(u) {
			filled++
		}
	}
	return filled * 100 / len(profileFields)
}
