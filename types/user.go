package types

// Credentials is the login and sign-up request body.
type Credentials struct {
	// Username is the account name chosen at sign-up.
	Username string `json:"username"`

	// Password is sent as entered; hashing is the remote service's job.
	Password string `json:"password"`
}

// UserProfile holds the personal data a user attaches to their account.
// The client keeps at most one copy, always the one confirmed by the
// remote service.
type UserProfile struct {
	// FullName is the user's display or full name.
	FullName string `json:"fullname"`

	// Email is the user's contact email address.
	Email string `json:"email"`

	// Phone is the user's contact phone number.
	Phone string `json:"phone"`

	// Age is the user's age in whole years.
	Age int `json:"age"`

	// Sex is free text as entered by the user.
	Sex string `json:"sex"`
}

// IsZero reports whether the profile carries no data at all.
// A zero profile from the remote service is treated as "no profile".
func (p UserProfile) IsZero() bool {
	return p == UserProfile{}
}
