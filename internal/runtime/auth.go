// internal/runtime/auth.go
package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

const (
	CredentialsFile = "client_secret.json"
	TokenFile       = "token.json"

	defaultRedirectWait = 120 * time.Second
)

// Scope selects the OAuth grant an action needs.
type Scope int

const (
	// ScopeModify covers trash and label changes.
	ScopeModify Scope = iota
	// ScopeFull is required by permanent deletion.
	ScopeFull
)

func (s Scope) URLs() []string {
	switch s {
	case ScopeModify:
		return []string{gmail.GmailModifyScope, gmail.GmailLabelsScope}
	case ScopeFull:
		return []string{gmail.MailGoogleComScope, gmail.GmailModifyScope, gmail.GmailLabelsScope}
	default:
		panic("unknown scope")
	}
}

func (s Scope) String() string {
	if s == ScopeFull {
		return "full"
	}
	return "modify"
}

// AuthOptions configures Authenticate. In and Out are used for the
// manual-paste fallback; Out also receives the consent URL.
type AuthOptions struct {
	Dir   string
	Scope Scope
	// Force discards any cached token.
	Force        bool
	In           io.Reader
	Out          io.Writer
	RedirectWait time.Duration
}

// storedToken is the on-disk token cache. Scopes records what the user
// granted so a narrower cached grant triggers a new consent.
type storedToken struct {
	oauth2.Token
	Scopes []string `json:"scopes,omitempty"`
}

// OAuthConfig reads the installed-app client secret from dir.
func OAuthConfig(dir string, scope Scope) (*oauth2.Config, error) {
	credPath := filepath.Join(dir, CredentialsFile)
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}
	cfg, err := google.ConfigFromJSON(b, scope.URLs()...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}
	return cfg, nil
}

// Authenticate returns a token source with at least the requested scope,
// reusing the cached token when it covers the scope and running the
// browser consent flow otherwise. The returned source is safe to share
// between goroutines.
func Authenticate(ctx context.Context, opts AuthOptions) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(opts.Dir, opts.Scope)
	if err != nil {
		return nil, err
	}
	tokPath := filepath.Join(opts.Dir, TokenFile)
	if !opts.Force {
		st, err := readToken(tokPath)
		if err == nil && covers(st.Scopes, opts.Scope) {
			return cfg.TokenSource(ctx, &st.Token), nil
		}
	}

	tok, err := tokenFromWeb(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := saveToken(tokPath, storedToken{Token: *tok, Scopes: cfg.Scopes}); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return cfg.TokenSource(ctx, tok), nil
}

func covers(granted []string, scope Scope) bool {
	if slices.Contains(granted, gmail.MailGoogleComScope) {
		return true
	}
	for _, want := range scope.URLs() {
		if !slices.Contains(granted, want) {
			return false
		}
	}
	return true
}

func readToken(path string) (storedToken, error) {
	var st storedToken
	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return st, err
	}
	if st.RefreshToken == "" && st.AccessToken == "" {
		return st, errors.New("token cache is empty")
	}
	return st, nil
}

func saveToken(path string, st storedToken) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(st); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// tokenFromWeb captures the auth code on a loopback redirect and falls back
// to reading a pasted code or redirect URL when the redirect never arrives.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, opts AuthOptions) (*oauth2.Token, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	wait := opts.RedirectWait
	if wait <= 0 {
		wait = defaultRedirectWait
	}

	codes := make(chan string, 1)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		port := ln.Addr().(*net.TCPAddr).Port
		loopback := *cfg
		loopback.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

		srv := &http.Server{ReadHeaderTimeout: 5 * time.Second, Handler: codeHandler(codes)}
		go func() { _ = srv.Serve(ln) }()
		defer func() { _ = srv.Shutdown(context.Background()) }()

		fmt.Fprintln(out, "Open this URL in your browser to authorize mailpurge:")
		fmt.Fprintln(out, loopback.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
		fmt.Fprintf(out, "Waiting for redirect on %s\n", loopback.RedirectURL)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case code := <-codes:
			tok, err := loopback.Exchange(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("token exchange: %w", err)
			}
			return tok, nil
		case <-time.After(wait):
			fmt.Fprintln(out, "Timeout waiting for redirect; falling back to manual paste.")
		}
	}

	fmt.Fprintln(out, "Open this URL in your browser to authorize mailpurge:")
	fmt.Fprintln(out, cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Fprintln(out, "Paste the auth code or the full redirect URL, then press Enter.")
	fmt.Fprint(out, "> ")

	code, err := readCode(in)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

func codeHandler(codes chan<- string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codes <- code:
		default:
		}
	})
}

func readCode(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read auth code: %w", err)
		}
		return "", errors.New("empty authorization code")
	}
	return parseCode(sc.Text())
}

// parseCode accepts either a bare code or a redirect URL carrying one.
func parseCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}
