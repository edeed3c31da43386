package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Claims are the JWT claims of an API token. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject
func (c *Claims) UserID() string {
	return c.Subject
}

// AuthUser is the authenticated caller as reported by /auth/me
type AuthUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Teams     []string  `json:"teams"`
	Roles     []string  `json:"roles"`
	IsAdmin   bool      `json:"isAdmin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenResponse carries a freshly signed token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService signs and validates HS256 tokens and resolves team memberships
type AuthService struct {
	DB            *gorm.DB
	secret        []byte
	expiry        time.Duration
	refreshWindow time.Duration
	adminTeam     string
	now           func() time.Time
}

// NewAuthService creates an AuthService from configuration
func NewAuthService(cfg *config.Config, db *gorm.DB) *AuthService {
	return &AuthService{
		DB:            db,
		secret:        []byte(cfg.JWTSecret),
		expiry:        cfg.JWTExpiry,
		refreshWindow: cfg.JWTRefreshWindow,
		adminTeam:     cfg.AdminTeamID,
		now:           time.Now,
	}
}

// IssueToken signs a token for the given user
func (s *AuthService) IssueToken(userID, email, name string) (*TokenResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, types.BadRequest("user id is required", "auth.validation")
	}
	now := s.now()
	expires := now.Add(s.expiry)
	claims := &Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &TokenResponse{Token: signed, ExpiresAt: expires.UTC()}, nil
}

// ValidateToken checks signature, algorithm and expiry
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString)
}

// Refresh issues a new token for one that is valid or expired less than the
// refresh window ago
func (s *AuthService) Refresh(tokenString string) (*TokenResponse, error) {
	claims, err := s.parse(tokenString, jwt.WithLeeway(s.refreshWindow))
	if err != nil {
		return nil, err
	}
	return s.IssueToken(claims.Subject, claims.Email, claims.Name)
}

func (s *AuthService) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	if tokenString == "" {
		return nil, unauthorized("missing bearer token", nil)
	}
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, unauthorized("token has expired", err)
		}
		return nil, unauthorized("invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, unauthorized("invalid token claims", nil)
	}
	return claims, nil
}

// Teams lists the team ids of a user
func (s *AuthService) Teams(ctx context.Context, userID string) ([]string, error) {
	teams := []string{}
	err := s.DB.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("user_id = ?", userID).
		Order("team_id ASC").
		Pluck("team_id", &teams).Error
	if err != nil {
		return nil, fmt.Errorf("load teams of %s: %w", userID, err)
	}
	return teams, nil
}

// IsAdmin reports whether the user belongs to the admin team
func (s *AuthService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("team_id = ? AND user_id = ?", s.adminTeam, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check admin membership: %w", err)
	}
	return count > 0, nil
}

// AdminTeam returns the admin team id
func (s *AuthService) AdminTeam() string {
	return s.adminTeam
}

// Me describes the caller of a validated token
func (s *AuthService) Me(ctx context.Context, claims *Claims) (*AuthUser, error) {
	var memberships []models.TeamMembership
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", claims.Subject).
		Order("team_id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("load memberships of %s: %w", claims.Subject, err)
	}

	user := &AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Teams: make([]string, 0, len(memberships)),
		Roles: []string{},
	}
	for _, m := range memberships {
		user.Teams = append(user.Teams, m.TeamID)
		if m.TeamID == s.adminTeam {
			user.IsAdmin = true
		}
		for _, role := range m.Roles {
			if !slices.Contains(user.Roles, role) {
				user.Roles = append(user.Roles, role)
			}
		}
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return user, nil
}

// GrantMembership adds a user to a team; granting twice is a no-op
func (s *AuthService) GrantMembership(ctx context.Context, teamID, userID string, roles ...string) error {
	if teamID == "" || userID == "" {
		return types.BadRequest("team and user are required", "auth.validation")
	}
	membership := &models.TeamMembership{
		TeamID: teamID,
		UserID: userID,
		Roles:  datatypes.JSONSlice[string](roles),
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(membership).Error
	if err != nil && !database.IsDuplicateKey(err) {
		return fmt.Errorf("grant %s membership to %s: %w", teamID, userID, err)
	}
	logging.Ctx(ctx).Info().Str("team", teamID).Str("user", userID).Msg("Team membership granted")
	return nil
}

func unauthorized(message string, cause error) error {
	return types.Wrap(cause, http.StatusUnauthorized, message, "auth.unauthorized")
}
