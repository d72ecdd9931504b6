package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"backend-busboxd/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	minPasswordLen = 4
	maxBioLen      = 160

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var bcryptCost = bcrypt.DefaultCost

type Service struct {
	secret []byte
	blobs  storage.Store
	file   string
	now    func() time.Time

	// mu serialises read-modify-write cycles on the user document within
	// this process.
	mu sync.Mutex
}

type Claims struct {
	UserID string `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func NewService(secret string, blobs storage.Store, file string) *Service {
	if file == "" {
		file = "users.json"
	}
	return &Service{
		secret: []byte(secret),
		blobs:  blobs,
		file:   file,
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return User{}, TokenResponse{}, fmt.Errorf("%w: username required, without spaces", ErrValidation)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return User{}, TokenResponse{}, fmt.Errorf("%w: password must have at least %d characters", ErrValidation, minPasswordLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	if _, ok := users[username]; ok {
		return User{}, TokenResponse{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	rec := userRecord{
		Password:    string(hash),
		CreatedAt:   s.now().Format(time.RFC3339),
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	users[username] = rec
	if err := storage.SaveJSON(ctx, s.blobs, s.file, users, "New user: "+username); err != nil {
		return User{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(username)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return rec.user(username), tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	users, err := s.load(ctx)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	rec, ok := users[strings.TrimSpace(req.Username)]
	if !ok {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}

	username := strings.TrimSpace(req.Username)
	tokens, err := s.GenerateTokens(username)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return rec.user(username), tokens, nil
}

func (s *Service) Profile(ctx context.Context, username string) (User, error) {
	users, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	rec, ok := users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return rec.user(username), nil
}

func (s *Service) UpdateProfile(ctx context.Context, username string, patch ProfileUpdate) (User, error) {
	if patch.Bio != nil && utf8.RuneCountInString(*patch.Bio) > maxBioLen {
		return User{}, fmt.Errorf("%w: bio is limited to %d characters", ErrValidation, maxBioLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	rec, ok := users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if patch.DisplayName != nil {
		rec.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Bio != nil {
		rec.Bio = strings.TrimSpace(*patch.Bio)
	}
	users[username] = rec
	if err := storage.SaveJSON(ctx, s.blobs, s.file, users, "Update profile: "+username); err != nil {
		return User{}, err
	}
	return rec.user(username), nil
}

// Exists reports whether username is registered.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	users, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := users[username]
	return ok, nil
}

func (s *Service) GenerateTokens(userID string) (TokenResponse, error) {
	access, err := s.signToken(userID, tokenTypeAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	refresh, err := s.signToken(userID, tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(token string) (string, error) {
	return s.validate(token, tokenTypeRefresh)
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	return s.validate(token, tokenTypeAccess)
}

func (s *Service) validate(token, typ string) (string, error) {
	claims, err := parseToken(s.secret, token)
	if err != nil {
		return "", err
	}
	if claims.Type != typ {
		return "", fmt.Errorf("expected %s token", typ)
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) load(ctx context.Context) (map[string]userRecord, error) {
	users := map[string]userRecord{}
	if _, err := storage.LoadJSON(ctx, s.blobs, s.file, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]userRecord{}
	}
	return users, nil
}

func parseToken(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}
