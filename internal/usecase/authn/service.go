// Package authn implements login, token refresh and the OAuth
// authorization-code flow.
package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/config"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// userInfoSizeLimit bounds the OAuth userinfo response body.
const userInfoSizeLimit = 1 << 20

type Service struct {
	users  ports.UserRepository
	tokens *auth.TokenManager
	oauth  *oauth2.Config
	// userInfoURL is the provider endpoint queried with the exchanged
	// access token; empty disables the OAuth flow.
	userInfoURL string
}

func NewService(users ports.UserRepository, tokens *auth.TokenManager, cfg config.OAuthConfig) *Service {
	svc := &Service{
		users:       users,
		tokens:      tokens,
		userInfoURL: cfg.UserInfoURL,
	}
	if cfg.ClientID != "" {
		svc.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		}
	}
	return svc
}

// TokenPair is what every successful authentication hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         ports.User
}

// Login checks the password and issues a token pair. Inactive accounts
// are rejected with the same error as a bad password so probing cannot
// tell the two apart.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	if err := checkCtx(ctx); err != nil {
		return TokenPair{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	found, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return TokenPair{}, invalidCredentials()
		}
		return TokenPair{}, err
	}
	if !found.IsActive {
		return TokenPair{}, invalidCredentials()
	}
	if err := auth.VerifyPassword(found.HashedPassword, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return TokenPair{}, invalidCredentials()
		}
		return TokenPair{}, err
	}

	return s.issuePair(found)
}

// Refresh trades a valid refresh token for a fresh pair. The account is
// re-read so role changes and deactivation take effect at rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := checkCtx(ctx); err != nil {
		return TokenPair{}, err
	}

	identity, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, apperrors.New(apperrors.KindForbidden, "invalid refresh token")
	}

	found, err := s.users.GetUser(ctx, identity.UserID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return TokenPair{}, apperrors.New(apperrors.KindForbidden, "invalid refresh token")
		}
		return TokenPair{}, err
	}
	if !found.IsActive {
		return TokenPair{}, apperrors.New(apperrors.KindForbidden, "account is inactive")
	}

	return s.issuePair(found)
}

// AuthorizeURL builds the provider redirect for the given CSRF state.
func (s *Service) AuthorizeURL(state string) (string, error) {
	if s.oauth == nil {
		return "", apperrors.New(apperrors.KindValidation, "oauth login is not configured")
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type oauthUserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode completes the authorization-code flow: exchange the code,
// fetch the provider's userinfo, upsert the account as an OAuth user and
// issue a first-party token pair. New accounts start as Reporter.
func (s *Service) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	if err := checkCtx(ctx); err != nil {
		return TokenPair{}, err
	}
	if s.oauth == nil || s.userInfoURL == "" {
		return TokenPair{}, apperrors.New(apperrors.KindValidation, "oauth login is not configured")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, apperrors.New(apperrors.KindForbidden, "oauth code exchange failed")
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return TokenPair{}, err
	}
	if info.Email == "" {
		return TokenPair{}, apperrors.New(apperrors.KindForbidden, "oauth provider returned no email")
	}

	found, err := s.upsertOAuthUser(ctx, info)
	if err != nil {
		return TokenPair{}, err
	}
	if !found.IsActive {
		return TokenPair{}, apperrors.New(apperrors.KindForbidden, "account is inactive")
	}

	return s.issuePair(found)
}

func (s *Service) fetchUserInfo(ctx context.Context, token *oauth2.Token) (oauthUserInfo, error) {
	client := s.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return oauthUserInfo{}, errs.Wrap(err, "build userinfo request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return oauthUserInfo{}, errs.Wrap(err, "fetch userinfo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info oauthUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, userInfoSizeLimit)).Decode(&info); err != nil {
		return oauthUserInfo{}, errs.Wrap(err, "decode userinfo")
	}
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	return info, nil
}

func (s *Service) upsertOAuthUser(ctx context.Context, info oauthUserInfo) (ports.User, error) {
	found, err := s.users.GetUserByEmail(ctx, info.Email)
	if err == nil {
		update := ports.UserUpdate{}
		if info.Name != "" && info.Name != found.Name {
			update.Name = &info.Name
		}
		if info.Picture != "" && info.Picture != found.ProfileImage {
			update.ProfileImage = &info.Picture
		}
		if update.Name == nil && update.ProfileImage == nil {
			return found, nil
		}
		return s.users.UpdateUser(ctx, found.UserID, update)
	}
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return ports.User{}, err
	}

	return s.users.CreateUser(ctx, ports.User{
		Email:         info.Email,
		Name:          info.Name,
		Role:          rbac.RoleReporter,
		IsActive:      true,
		IsOAuthUser:   true,
		OAuthProvider: "oidc",
		ProfileImage:  info.Picture,
	})
}

func (s *Service) issuePair(user ports.User) (TokenPair, error) {
	identity := auth.Identity{UserID: user.UserID, Email: user.Email, Role: user.Role}
	access, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return TokenPair{}, errs.Wrap(err, "issue access token")
	}
	refresh, err := s.tokens.IssueRefreshToken(identity)
	if err != nil {
		return TokenPair{}, errs.Wrap(err, "issue refresh token")
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

func invalidCredentials() error {
	return apperrors.New(apperrors.KindForbidden, "incorrect email or password")
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return ctx.Err()
}
