package account

import "time"

// Config drives account behavior.
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Account represents a persisted user account.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Age          *int
	Tokens       TokenList
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount carries validated fields for insertion.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	Age          *int
}

// View trims sensitive fields; it is the only account shape sent to clients.
type View struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       *int      `json:"age,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      *int   `json:"age"`
}

// LoginRequest captures login details.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse returns the account and the freshly issued session token.
type LoginResponse struct {
	User  View   `json:"user"`
	Token string `json:"token"`
}

// Patch holds a profile update. Nil fields are left untouched.
type Patch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Age      *int    `json:"age"`
}

// Session is the resolved identity of an authenticated request.
type Session struct {
	Account Account
	Token   string
}

// ToView converts an account into its public representation.
func ToView(a Account) View {
	return View{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Age:       a.Age,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
