package auth

type User struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name,omitempty"`
	Bio          string `json:"bio,omitempty"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// userRecord is one entry of the user document, keyed by username.
type userRecord struct {
	Password    string `json:"password"`
	CreatedAt   string `json:"created_at"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

func (r userRecord) user(username string) User {
	return User{
		Username:     username,
		DisplayName:  r.DisplayName,
		Bio:          r.Bio,
		PasswordHash: r.Password,
		CreatedAt:    r.CreatedAt,
	}
}
