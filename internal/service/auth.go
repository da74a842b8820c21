package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

const tokenIssuer = "recipe-assistant"

var errInvalidToken = errors.New("invalid token")

type AuthService struct {
	db          *gorm.DB
	jwtSecret   string
	tokenExpiry time.Duration
}

func NewAuthService(db *gorm.DB, jwtSecret string, tokenExpiry time.Duration) *AuthService {
	if tokenExpiry <= 0 {
		tokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		db:          db,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
	}
}

// Register creates an account and returns a bearer token for it
func (s *AuthService) Register(ctx context.Context, req *types.RegisterRequest) (*types.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, "email", req.Email, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, "username", req.Username, uuid.Nil); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Infrastructure(err, "hash password")
	}

	user := &model.User{
		Username:        req.Username,
		Email:           req.Email,
		Phone:           req.Phone,
		DisplayName:     req.DisplayName,
		PasswordHash:    string(hashedPassword),
		DietPreferences: req.DietPreferences,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrAlreadyExists.WithMessage("Email or username already registered")
		}
		return nil, apperrors.Infrastructure(err, "create user")
	}

	return s.loginResponse(user)
}

// Login verifies credentials. Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, req *types.LoginRequest) (*types.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredential
		}
		return nil, apperrors.Infrastructure(err, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredential
	}

	return s.loginResponse(&user)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Infrastructure(err, "find user")
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of req
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *types.UpdateProfileRequest) (*model.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username != user.Username {
			if err := s.ensureUnique(ctx, "username", username, user.ID); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.DietPreferences != nil {
		user.DietPreferences = req.DietPreferences
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrUsernameTaken
		}
		return nil, apperrors.Infrastructure(err, "update user")
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req *types.ChangePasswordRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return apperrors.Validation("Current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Infrastructure(err, "hash password")
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", string(hashedPassword)).Error; err != nil {
		return apperrors.Infrastructure(err, "update password")
	}
	return nil
}

// GenerateToken signs an HS256 token for the user
func (s *AuthService) GenerateToken(user *model.User) (string, error) {
	now := time.Now()
	claims := &types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		},
		UserID:   user.ID,
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) ValidateToken(tokenString string) (*types.TokenClaims, error) {
	claims := &types.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, errInvalidToken
	}
	return claims, nil
}

func (s *AuthService) loginResponse(user *model.User) (*types.LoginResponse, error) {
	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Infrastructure(err, "sign token")
	}
	return &types.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

// ensureUnique fails when another user already holds value in column
func (s *AuthService) ensureUnique(ctx context.Context, column, value string, exclude uuid.UUID) error {
	var count int64
	query := s.db.WithContext(ctx).Model(&model.User{}).Where(column+" = ?", value)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Infrastructure(err, "check "+column)
	}
	if count == 0 {
		return nil
	}
	if column == "email" {
		return apperrors.ErrEmailTaken
	}
	return apperrors.ErrUsernameTaken
}
