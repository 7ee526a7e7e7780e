package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"facade_server/pkg/apperr"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// DefaultScopes is what the facade needs to read, send and relabel mail.
var DefaultScopes = []string{gmailapi.GmailModifyScope}

// authorizedUser is a stored authorized-user credential. Both the Google
// client library field names (token, expiry) and the oauth2.Token names
// (access_token, expires_at) are accepted.
type authorizedUser struct {
	Token        string   `json:"token"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// LoadTokenSource reads an authorized-user token file and returns a token
// source that refreshes through base. Refreshes reuse the token until it
// expires.
func LoadTokenSource(path string, scopes []string, base *http.Client) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Authentication(fmt.Errorf("read token file %s: %w", path, err))
	}
	return ParseTokenSource(data, scopes, base)
}

// ParseTokenSource is LoadTokenSource over the file contents.
func ParseTokenSource(data []byte, scopes []string, base *http.Client) (oauth2.TokenSource, error) {
	var au authorizedUser
	if err := json.Unmarshal(data, &au); err != nil {
		return nil, apperr.Authentication(fmt.Errorf("parse token file: %w", err))
	}

	tok := &oauth2.Token{
		AccessToken:  au.Token,
		RefreshToken: au.RefreshToken,
		TokenType:    au.TokenType,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = au.AccessToken
	}
	if au.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339, au.Expiry)
		if err != nil {
			return nil, apperr.Authentication(fmt.Errorf("parse token expiry %q: %w", au.Expiry, err))
		}
		tok.Expiry = expiry
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, apperr.Authentication(errors.New("token file has neither an access token nor a refresh token"))
	}

	if len(au.Scopes) > 0 {
		scopes = au.Scopes
	}
	endpoint := google.Endpoint
	if au.TokenURI != "" {
		endpoint.TokenURL = au.TokenURI
	}
	cfg := &oauth2.Config{
		ClientID:     au.ClientID,
		ClientSecret: au.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}

	// the refresh client outlives any one request
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)), nil
}
