package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the subset of a player profile the engine reads
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ClerkID   string             `bson:"clerkId" json:"clerkId"`
	Email     string             `bson:"email" json:"email"`
	FirstName string             `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string             `bson:"lastName,omitempty" json:"lastName,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DisplayName is the name and email announced for a winner
type DisplayName struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FallbackName synthesizes a name from the last six characters of a user id
func FallbackName(userID string) string {
	suffix := userID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "User " + suffix
}

// DisplayNameOf resolves the announced name of u, falling back on userID
func DisplayNameOf(u *User, userID string) DisplayName {
	if u == nil {
		return DisplayName{Name: FallbackName(userID)}
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = FallbackName(userID)
	}
	return DisplayName{Name: name, Email: u.Email}
}
