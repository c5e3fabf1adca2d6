package model

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=40"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateAnnonceRequest struct {
	Titre       string `json:"titre" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required,min=10"`
}

type UpdateAnnonceRequest struct {
	Titre       string `json:"titre" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required,min=10"`
}

type RejectAnnonceRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}
