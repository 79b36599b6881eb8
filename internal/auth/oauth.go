package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// Profile is the provider-neutral result of a completed OAuth exchange:
// enough to resolve the sign-in to a User row and nothing more. The access
// token never leaves the exchange — only profile fields do.
type Profile struct {
	Provider   string // "google" or "microsoft"
	ExternalID string // provider's stable subject identifier
	Email      string // lowercased; may be empty if the provider hides it
	FirstName  string
	LastName   string
}

// Provider wraps golang.org/x/oauth2 for one identity provider's
// authorization-code flow. Both supported providers go through the same two
// calls — AuthURL to start the flow, Exchange to finish it — so the handler
// and service layers never branch on which provider is in play.
//
// The code-for-token exchange happens server-to-server using the client
// secret; the access token never touches the browser.
type Provider struct {
	name       string
	config     *oauth2.Config
	profileURL string
	decode     func([]byte) (Profile, error)
}

// Name returns the provider's identifier ("google" or "microsoft").
func (p *Provider) Name() string { return p.name }

// NewGoogleProvider creates a Provider for Google sign-in.
// callbackURL must exactly match the authorized redirect URI configured in
// the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		profileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		decode:     decodeGoogleProfile,
	}
}

// NewMicrosoftProvider creates a Provider for Microsoft sign-in, using the
// "common" tenant so both personal and organizational accounts work.
func NewMicrosoftProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		name: "microsoft",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email", "User.Read"},
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
		profileURL: "https://graph.microsoft.com/v1.0/me",
		decode:     decodeMicrosoftProfile,
	}
}

// AuthURL returns the provider URL to redirect the user to.
//
// The state is a random string the caller stores in a short-lived cookie
// before redirecting; the callback handler verifies the provider echoed it
// back, which blocks CSRF-initiated flows.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: trades the authorization code for an access
// token, calls the provider's profile endpoint with it, and returns the
// normalized Profile.
func (p *Provider) Exchange(ctx context.Context, code string) (Profile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.name, err)
	}

	// config.Client returns an *http.Client that adds the bearer token to
	// every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.profileURL)
	if err != nil {
		return Profile{}, fmt.Errorf("auth: calling %s profile endpoint: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("auth: %s profile endpoint returned status %d", p.name, resp.StatusCode)
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, fmt.Errorf("auth: decoding %s profile response: %w", p.name, err)
	}

	profile, err := p.decode(body)
	if err != nil {
		return Profile{}, err
	}
	if profile.ExternalID == "" {
		return Profile{}, fmt.Errorf("auth: %s returned a profile without an id", p.name)
	}

	profile.Provider = p.name
	profile.Email = strings.ToLower(profile.Email)
	return profile, nil
}

func decodeGoogleProfile(data []byte) (Profile, error) {
	var g struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return Profile{}, fmt.Errorf("auth: parsing google profile: %w", err)
	}
	return Profile{
		ExternalID: g.ID,
		Email:      g.Email,
		FirstName:  g.GivenName,
		LastName:   g.FamilyName,
	}, nil
}

func decodeMicrosoftProfile(data []byte) (Profile, error) {
	var m struct {
		ID                string `json:"id"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		GivenName         string `json:"givenName"`
		Surname           string `json:"surname"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Profile{}, fmt.Errorf("auth: parsing microsoft profile: %w", err)
	}

	// Graph leaves "mail" empty for some personal accounts; the UPN is an
	// email-shaped fallback.
	email := m.Mail
	if email == "" {
		email = m.UserPrincipalName
	}

	return Profile{
		ExternalID: m.ID,
		Email:      email,
		FirstName:  m.GivenName,
		LastName:   m.Surname,
	}, nil
}
