package blinkapi

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/session"
)

const (
	DefaultTokenURL = "https://api.oauth.blink.com/oauth/token"
	oauthClientID   = "android"
	oauthScope      = "client"
)

// headerTransport adds the device headers the token endpoint insists on
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

// savingTokenSource writes refreshed tokens back to the session so that a
// restart does not need a new login
type savingTokenSource struct {
	src     oauth2.TokenSource
	session *session.State
	last    string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, errors.Wrap(err, "refreshing blink token")
	}

	if tok.AccessToken != s.last {
		logging.Logger(nil).Debugf("blink access token refreshed, valid until %s", tok.Expiry)
		s.last = tok.AccessToken
		if err := s.session.SetToken(tok); err != nil {
			logging.Logger(nil).Warnf("saving refreshed token: %s", err)
		}
	}

	return tok, nil
}

func (c *Live) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: oauthClientID,
		Scopes:   []string{oauthScope},
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Live) oauthContext(ctx context.Context, pin string) context.Context {
	base := http.DefaultTransport
	if c.httpClient != nil && c.httpClient.Transport != nil {
		base = c.httpClient.Transport
	}

	headers := map[string]string{
		"hardware_id": c.session.ClientUUID,
	}
	if pin != "" {
		headers["2fa-code"] = pin
	}

	hc := &http.Client{Transport: &headerTransport{base: base, headers: headers}}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

// token returns a valid access token, refreshing it when needed
func (c *Live) token() (*oauth2.Token, error) {
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}

	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	if c.shared.tokens == nil {
		tok := c.session.Token()
		if tok == nil {
			return nil, ErrNotLoggedIn
		}

		ctx := c.oauthContext(context.Background(), "")
		c.shared.tokens = &savingTokenSource{
			src:     c.oauthConfig().TokenSource(ctx, tok),
			session: c.session,
			last:    tok.AccessToken,
		}
	}

	return c.shared.tokens.Token()
}

func (c *Live) Login(ctx context.Context, creds Credentials) error {
	return c.passwordGrant(ctx, creds, creds.PIN)
}

func (c *Live) VerifyPIN(ctx context.Context, creds Credentials, pin string) error {
	return c.passwordGrant(ctx, creds, pin)
}

func (c *Live) passwordGrant(ctx context.Context, creds Credentials, pin string) error {
	if c.session == nil {
		return errors.New("no session to log in to")
	}

	ctx, cancel := c.makeContext(ctx)
	defer cancel()

	logging.Logger(ctx).Debugf("requesting token for %s (client %s)", creds.Email, c.session.ClientUUID)

	tok, err := c.oauthConfig().PasswordCredentialsToken(c.oauthContext(ctx, pin), creds.Email, creds.Password)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil && rErr.Response.StatusCode == http.StatusPreconditionFailed {
			return ErrVerificationRequired
		}
		return errors.Wrap(err, "requesting blink token")
	}

	c.shared.mu.Lock()
	c.shared.tokens = nil
	c.shared.mu.Unlock()

	c.session.Email = creds.Email
	if err := c.session.SetToken(tok); err != nil {
		return errors.Wrap(err, "storing blink token")
	}

	ti := tierInfo{}
	if _, err := c.call(ctx, http.MethodGet, "/api/v1/users/tier_info", nil, &ti); err != nil {
		return errors.Wrap(err, "fetching account tier")
	}

	c.session.AccountID = ti.AccountID
	if ti.Tier != "" {
		c.session.Tier = ti.Tier
	}

	logging.Logger(ctx).Infof("logged in to blink account %d on tier %s", c.session.AccountID, c.session.Tier)

	return errors.Wrap(c.session.SetToken(tok), "storing blink session")
}
