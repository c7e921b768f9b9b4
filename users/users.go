package users

// User is the platform profile record attached to an authenticated session.
// It mirrors the payload the backend returns from /auth/me and is the value
// cached in the token store under the "user" slot.
type User struct {
	ID       string `json:"id,omitempty"`        // Unique identifier for the user
	Username string `json:"username,omitempty"`  // Display name shown across the platform
	FullName string `json:"full_name,omitempty"` // Full name, optional
	Email    string `json:"email,omitempty"`     // User's email address
	Avatar   string `json:"avatar,omitempty"`    // Avatar image reference
}
