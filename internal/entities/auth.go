package entities

type TokenResponse struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int
	Scope        string
	UserID       int64
	RefreshToken string
}

type UserInfo struct {
	ID       int64
	Nickname string
	Email    string
}
