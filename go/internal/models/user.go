package models

// User is a participant identity. It is created client side and never changes.
type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// NewUser creates a user with a fresh id
func NewUser(name string) User {
	return User{
		ID:   NewUserID(),
		Name: name,
	}
}
