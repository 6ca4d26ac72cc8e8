package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sac-backend-go/internal/db"
	"sac-backend-go/internal/models"
)

const (
	MsgRegistered = "Registered Successfully. Please verify the account to login."
	tokenType     = "Bearer"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Accounts drives registration, login and email verification.
type Accounts struct {
	DB        *sqlx.DB
	Tokens    TokenService
	Passwords PasswordHasher
	Mailer    Mailer
	// Nonces makes verification links single-use. Nil accepts replays.
	Nonces NonceStore
	// VerifyBaseURL is the public origin the emailed link points at.
	VerifyBaseURL string
	Logger        *zap.Logger
}

func (a *Accounts) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register stores an inactive user and then sends the verification email.
// A mail failure does not undo the registration; /auth/reverify recovers it.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) error {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return ErrMissingCredentials
	}
	hashed, err := a.Passwords.Hash(in.Password)
	if err != nil {
		return WrapError(err, "hash password")
	}
	var id int64
	err = a.DB.GetContext(ctx, &id, `
INSERT INTO user_profile (name, email, password, active)
VALUES ($1, $2, $3, FALSE)
RETURNING id
`, name, email, hashed)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return WrapError(err, "insert user")
	}
	if err := a.sendVerification(ctx, Identity{ID: id, Name: name, Email: email}); err != nil {
		a.logger().Warn("verification email failed after registration",
			zap.Int64("user_id", id), zap.String("email", email), zap.Error(err))
	}
	return nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (AccessToken, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AccessToken{}, ErrMissingCredentials
	}
	user, err := a.userByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return AccessToken{}, ErrWrongCredentials
	}
	if err != nil {
		return AccessToken{}, err
	}
	if !a.Passwords.Verify(password, user.Password) {
		return AccessToken{}, ErrWrongCredentials
	}
	if !user.Active {
		return AccessToken{}, ErrUserNotActive
	}
	token, _, err := a.Tokens.Issue(Identity{ID: user.ID, Name: user.Name, Email: user.Email}, PurposeAccess)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{AccessToken: token, TokenType: tokenType}, nil
}

// ResendVerification mails a fresh link to an inactive account.
func (a *Accounts) ResendVerification(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrMissingCredentials
	}
	user, err := a.userByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrWrongCredentials
	}
	if err != nil {
		return "", err
	}
	if user.Active {
		return "", ErrUserAlreadyVerified
	}
	if err := a.sendVerification(ctx, Identity{ID: user.ID, Name: user.Name, Email: user.Email}); err != nil {
		a.logger().Error("verification email failed", zap.String("email", email), zap.Error(err))
		return "", ErrInternal
	}
	return fmt.Sprintf("Verification Link sent Successfully to %s", user.Email), nil
}

// Activate consumes a verification token, marks the account active and
// returns an access token minted from the current row.
func (a *Accounts) Activate(ctx context.Context, raw string) (string, error) {
	claims, err := a.Tokens.Verify(raw, PurposeVerify)
	if err != nil {
		return "", err
	}
	nonce := ""
	if a.Nonces != nil {
		key := "verify:" + claims.RegisteredClaims.ID
		fresh, err := a.Nonces.Consume(ctx, key, time.Until(claims.ExpiresAt.Time))
		switch {
		case err != nil:
			a.logger().Warn("nonce store unavailable, accepting verification link", zap.Error(err))
		case !fresh:
			return "", ErrInvalidToken
		default:
			nonce = key
		}
	}
	user := models.User{}
	err = a.DB.GetContext(ctx, &user, `
UPDATE user_profile SET active = TRUE
WHERE email = $1
RETURNING id, name, email, password, active, contact_number
`, claims.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		// A failed update leaves the link usable.
		if nonce != "" {
			if rerr := a.Nonces.Release(ctx, nonce); rerr != nil {
				a.logger().Warn("release verification nonce", zap.Error(rerr))
			}
		}
		return "", WrapError(err, "activate user")
	}
	token, _, err := a.Tokens.Issue(Identity{ID: user.ID, Name: user.Name, Email: user.Email}, PurposeAccess)
	return token, err
}

func (a *Accounts) userByEmail(ctx context.Context, email string) (models.User, error) {
	user := models.User{}
	err := a.DB.GetContext(ctx, &user, `
SELECT id, name, email, password, active, contact_number
FROM user_profile
WHERE email = $1
`, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, WrapError(err, "load user")
	}
	return user, err
}

func (a *Accounts) sendVerification(ctx context.Context, identity Identity) error {
	token, _, err := a.Tokens.Issue(identity, PurposeVerify)
	if err != nil {
		return err
	}
	link := strings.TrimRight(a.VerifyBaseURL, "/") + "/auth/verify/" + token
	body, err := renderVerificationEmail(identity.Name, link)
	if err != nil {
		return WrapError(err, "render verification email")
	}
	return a.Mailer.Send(ctx, identity.Email, verificationSubject, body)
}
