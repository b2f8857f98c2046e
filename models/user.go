package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of user roles
type Role string

// Roles
const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// ParseRole maps a stored role string onto a Role. Unknown and empty values fall back
// to RoleUser so they never gain privileges.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleModerator:
		return RoleModerator
	default:
		return RoleUser
	}
}

// User holds the structure for the users collection in mongo
type User struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Email       string             `json:"email" bson:"email"`
	Password    string             `json:"-" bson:"password"`
	Role        Role               `json:"role" bson:"role"`
	IsActive    bool               `json:"isActive" bson:"isActive"`
	IsVerified  bool               `json:"isVerified" bson:"isVerified"`
	LastLogin   *time.Time         `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	LoginCount  int                `json:"loginCount" bson:"loginCount"`
	IPAddress   string             `json:"-" bson:"ipAddress"`
	UserAgent   string             `json:"-" bson:"userAgent"`
	Profile     UserProfile        `json:"profile" bson:"profile"`
	Preferences UserPreferences    `json:"preferences" bson:"preferences"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// UserProfile holds optional profile details
type UserProfile struct {
	Avatar           *Avatar          `json:"avatar" bson:"avatar,omitempty"`
	Phone            string           `json:"phone" bson:"phone"`
	Address          Location         `json:"address" bson:"address"`
	EmergencyContact EmergencyContact `json:"emergencyContact" bson:"emergencyContact"`
}

// Avatar is a user picture stored on the image host
type Avatar struct {
	URL          string `json:"url" bson:"url"`
	CloudinaryID string `json:"cloudinaryId" bson:"cloudinaryId"`
}

// EmergencyContact of a user
type EmergencyContact struct {
	Name         string `json:"name" bson:"name"`
	Phone        string `json:"phone" bson:"phone"`
	Relationship string `json:"relationship" bson:"relationship"`
}

// UserPreferences hold notification and privacy settings
type UserPreferences struct {
	Notifications NotificationPreferences `json:"notifications" bson:"notifications"`
	Privacy       PrivacyPreferences      `json:"privacy" bson:"privacy"`
}

// NotificationPreferences select notification channels
type NotificationPreferences struct {
	Email bool `json:"email" bson:"email"`
	SMS   bool `json:"sms" bson:"sms"`
	Push  bool `json:"push" bson:"push"`
}

// PrivacyPreferences control profile visibility
type PrivacyPreferences struct {
	PublicProfile bool `json:"publicProfile" bson:"publicProfile"`
	ShowLocation  bool `json:"showLocation" bson:"showLocation"`
}

// DefaultPreferences are applied to newly registered users
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Notifications: NotificationPreferences{Email: true, Push: true},
	}
}

// Requester is the authenticated caller as seen by the case lifecycle
type Requester struct {
	ID   primitive.ObjectID
	Name string
	Role Role
}

// DisplayName returns the name used in generated notes
func (r Requester) DisplayName() string {
	if r.Name == "" {
		return "User"
	}
	return r.Name
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdateRequest is the body of PUT /users/profile
type ProfileUpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is the data returned by register and login
type AuthResponse struct {
	User User `json:"user"`
}
