package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	gosync "sync"

	"github.com/mattn/go-isatty"
	"github.com/shaun/assetsync/internal/config"
	"github.com/shaun/assetsync/internal/sync"
	"golang.org/x/term"
)

// TokenEnvVars are consulted, in order, when no token is configured.
var TokenEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

type silentKey struct{}

// WithSilent marks ctx as a background operation: the provider must never
// prompt and fails with sync.ErrAuthentication instead.
func WithSilent(ctx context.Context) context.Context {
	return context.WithValue(ctx, silentKey{}, true)
}

// IsSilent reports whether ctx was marked by WithSilent.
func IsSilent(ctx context.Context) bool {
	v, _ := ctx.Value(silentKey{}).(bool)
	return v
}

// PromptFunc asks the user for a token.
type PromptFunc func(ctx context.Context) (string, error)

// Provider resolves the GitHub token from configuration, a token file, the
// environment or, as a last resort, an interactive prompt. A prompted token
// is kept for the life of the process.
type Provider struct {
	token     string
	tokenFile string
	getenv    func(string) string
	prompt    PromptFunc

	mu       gosync.Mutex
	prompted string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithPrompt enables interactive sign-in.
func WithPrompt(fn PromptFunc) ProviderOption {
	return func(p *Provider) { p.prompt = fn }
}

// WithGetenv replaces os.Getenv (e.g. in tests).
func WithGetenv(fn func(string) string) ProviderOption {
	return func(p *Provider) { p.getenv = fn }
}

func NewProvider(cfg config.GitHubConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		token:     strings.TrimSpace(cfg.Token),
		tokenFile: cfg.TokenFile,
		getenv:    os.Getenv,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns the first token found. Without one it prompts, unless ctx
// is silent or no prompt is configured, in which case it returns an error
// matching sync.ErrAuthentication.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if p.token != "" {
		return p.token, nil
	}
	if p.tokenFile != "" {
		data, err := os.ReadFile(p.tokenFile)
		if err != nil {
			return "", fmt.Errorf("%w: failed to read token file: %v", sync.ErrAuthentication, err)
		}
		if t := strings.TrimSpace(string(data)); t != "" {
			return t, nil
		}
	}
	for _, name := range TokenEnvVars {
		if t := strings.TrimSpace(p.getenv(name)); t != "" {
			return t, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prompted != "" {
		return p.prompted, nil
	}
	if IsSilent(ctx) || p.prompt == nil {
		return "", fmt.Errorf("%w: no GitHub token configured", sync.ErrAuthentication)
	}
	t, err := p.prompt(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sync.ErrAuthentication, err)
	}
	if t = strings.TrimSpace(t); t == "" {
		return "", fmt.Errorf("%w: empty token", sync.ErrAuthentication)
	}
	p.prompted = t
	return t, nil
}

// TerminalPrompt reads a token from in when it is a terminal, echo off.
// Otherwise it returns nil so that callers run without prompting.
func TerminalPrompt(in *os.File, out io.Writer) PromptFunc {
	if in == nil || !isatty.IsTerminal(in.Fd()) {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		fmt.Fprint(out, "GitHub token: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// ReaderPrompt reads one line from r. Used for piped input.
func ReaderPrompt(r io.Reader) PromptFunc {
	br := bufio.NewReader(r)
	return func(ctx context.Context) (string, error) {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return line, nil
	}
}
