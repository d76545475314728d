package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gsheets "google.golang.org/api/sheets/v4"
)

// CredentialStore holds the OAuth client secret and the delegated user token.
type CredentialStore struct {
	CredentialsFile string // OAuth client secret downloaded from the Google console
	TokenFile       string // Cached user token, rewritten after every refresh
}

func (s *CredentialStore) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(s.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read Google client credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Google client credentials: %w", err)
	}
	return cfg, nil
}

// LoadToken reads the cached token.
func (s *CredentialStore) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.TokenFile)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &tok, nil
}

// SaveToken writes the token with owner-only permissions.
func (s *CredentialStore) SaveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	if err := os.WriteFile(s.TokenFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// TokenSource returns a source that refreshes the stored token when it expires
// and writes refreshed tokens back to the token file. Without a stored token
// the operator has to run the interactive grant first.
func (s *CredentialStore) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := s.oauthConfig()
	if err != nil {
		return nil, apperr.Upstream(err, "Google credentials are not configured")
	}
	tok, err := s.LoadToken()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Upstream(err, "no stored Google credential, run `labmark auth` first")
		}
		return nil, apperr.Upstream(err, "failed to load stored Google credential")
	}
	return &persistingSource{base: cfg.TokenSource(ctx, tok), store: s, last: tok}, nil
}

type persistingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store *CredentialStore
	last  *oauth2.Token
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, apperr.Upstream(err, "failed to refresh Google credential")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil || p.last.AccessToken != tok.AccessToken {
		if err := p.store.SaveToken(tok); err != nil {
			log.Warn().Err(err).Msg("Refreshed Google token could not be saved")
		} else {
			log.Info().Msg("Google token refreshed")
		}
		p.last = tok
	}
	return tok, nil
}

// AuthorizeLoopback runs the installed-app grant: it listens on a loopback
// port, hands the consent URL to openURL and waits for the redirect.
func (s *CredentialStore) AuthorizeLoopback(ctx context.Context, openURL func(authURL string)) error {
	cfg, err := s.oauthConfig()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start loopback listener: %w", err)
	}
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	codes := make(chan string, 1)
	failures := make(chan error, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			select {
			case failures <- fmt.Errorf("authorization denied: %s", e):
			default:
			}
			http.Error(w, "authorization denied", http.StatusForbidden)
			return
		}
		select {
		case codes <- q.Get("code"):
		default:
		}
		fmt.Fprintln(w, "Authorization complete. You may close this window.")
	})}
	go srv.Serve(ln)
	defer srv.Close()

	openURL(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	var code string
	select {
	case code = <-codes:
	case err := <-failures:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.exchange(ctx, cfg, code)
}

// AuthorizeManual runs the grant without a listener: readCode receives the
// consent URL and returns the code, or the whole redirected URL, pasted by the user.
func (s *CredentialStore) AuthorizeManual(ctx context.Context, readCode func(authURL string) (string, error)) error {
	cfg, err := s.oauthConfig()
	if err != nil {
		return err
	}
	cfg.RedirectURL = "http://localhost"

	input, err := readCode(cfg.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	if err != nil {
		return err
	}
	code := ExtractCode(input)
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}
	return s.exchange(ctx, cfg, code)
}

func (s *CredentialStore) exchange(ctx context.Context, cfg *oauth2.Config, code string) error {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return s.SaveToken(tok)
}

// ExtractCode accepts either a bare code or a redirect URL carrying ?code=.
func ExtractCode(input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "code=") {
		if u, err := url.Parse(input); err == nil {
			if code := u.Query().Get("code"); code != "" {
				return code
			}
		}
	}
	return input
}
