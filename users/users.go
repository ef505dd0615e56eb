package users

// RoleType represents a platform role assigned to a user account.
type RoleType string

const (
	RoleStudent    RoleType = "STUDENT"
	RoleBusiness   RoleType = "BUSINESS"
	RoleFreelancer RoleType = "FREELANCER"
	RoleAdmin      RoleType = "ADMIN"
	RoleInstructor RoleType = "INSTRUCTOR"
)

// User is the profile projection returned by the /auth/me endpoint.
// It is cached locally after each successful fetch and always written
// wholesale, never field-patched.
type User struct {
	ID                int64    `json:"id"`
	FullName          string   `json:"fullName"`
	Email             *string  `json:"email"`
	EmailVerified     bool     `json:"emailVerified"`
	PhoneNumber       *string  `json:"phoneNumber"`
	PhoneVerified     bool     `json:"phoneVerified"`
	Role              RoleType `json:"role"`
	ProfilePictureURL *string  `json:"profilePictureUrl"`
	Bio               *string  `json:"bio"`
	Country           *string  `json:"country"`
	City              *string  `json:"city"`
	Skills            []string `json:"skills"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role RoleType) bool {
	if u == nil {
		return false
	}
	return u.Role == role
}

// HasAnyRole reports whether the user holds at least one of the given roles.
// An empty role list places no restriction and always matches.
func (u *User) HasAnyRole(roles ...RoleType) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}
