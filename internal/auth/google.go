package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var ErrUnverifiedEmail = errors.New("google account email is not verified")

// GoogleProvider runs the OAuth authorization-code flow against Google.
type GoogleProvider struct {
	config *oauth2.Config
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{goauth2.OpenIDScope, goauth2.UserinfoEmailScope, goauth2.UserinfoProfileScope},
		Endpoint:     google.Endpoint,
	}}
}

// AuthCodeURL is where the browser is sent to consent.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the callback code for the account's email and name.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	svc, err := goauth2.NewService(ctx, option.WithTokenSource(p.config.TokenSource(ctx, tok)))
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("get userinfo: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return Identity{}, ErrUnverifiedEmail
	}

	return Identity{Email: info.Email, DisplayName: info.Name, Method: MethodGoogle}, nil
}
