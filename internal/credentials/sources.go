package credentials

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/filebug/filebug/internal/logging"
	"github.com/filebug/filebug/internal/report"
)

// Environment variable names honored per platform. These are load-bearing
// for drop-in compatibility with the CLI surface and must not change.
const (
	EnvGitHubToken       = "GITHUB_TOKEN"
	EnvGHToken           = "GH_TOKEN"
	EnvGitLabToken       = "GITLAB_TOKEN"
	EnvBitbucketToken    = "BITBUCKET_TOKEN"
	EnvBitbucketUsername = "BITBUCKET_USERNAME"
	EnvCodebergToken     = "CODEBERG_TOKEN"
	EnvBugzillaAPIKey    = "BUGZILLA_API_KEY"
	EnvBugzillaURL       = "BUGZILLA_URL"
	EnvSMTPHost          = "SMTP_HOST"
	EnvSMTPPort          = "SMTP_PORT"
	EnvSMTPUsername      = "SMTP_USERNAME"
	EnvSMTPPassword      = "SMTP_PASSWORD"
	EnvSMTPFrom          = "SMTP_FROM"
	EnvSMTPTo            = "SMTP_TO"
)

// LoadOptions points Load at its sources. Zero values select the real
// environment and the default CLI config paths; tests override them.
type LoadOptions struct {
	Getenv         func(string) string
	GHHostsPath    string // default ~/.config/gh/hosts.yml
	GlabConfigPath string // default ~/.config/glab-cli/config.yml
}

// Load assembles rotation pools for every platform. Environment variables are
// read first, then the GitHub CLI hosts file, then the GitLab CLI config.
// A missing or malformed source never fails the load: it simply contributes
// nothing, and the platform may end up with an empty pool.
func Load(opts LoadOptions) *Store {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.GHHostsPath == "" {
		opts.GHHostsPath = defaultConfigPath("gh", "hosts.yml")
	}
	if opts.GlabConfigPath == "" {
		opts.GlabConfigPath = defaultConfigPath("glab-cli", "config.yml")
	}

	store := NewStore(nil)
	loadEnv(store, opts.Getenv)
	loadGHHosts(store, opts.GHHostsPath)
	loadGlabConfig(store, opts.GlabConfigPath)
	return store
}

func defaultConfigPath(tool, file string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", tool, file)
}

// loadEnv reads the per-platform environment variables. Both GITHUB_TOKEN and
// GH_TOKEN contribute when set, forming a two-entry rotation pool.
func loadEnv(store *Store, getenv func(string) string) {
	for _, name := range []string{EnvGitHubToken, EnvGHToken} {
		if token := getenv(name); token != "" {
			store.Add(report.PlatformGitHub, Credential{Source: SourceEnv, Token: token})
		}
	}

	if token := getenv(EnvGitLabToken); token != "" {
		store.Add(report.PlatformGitLab, Credential{Source: SourceEnv, Token: token})
	}

	// Bitbucket app passwords are only usable together with a username.
	if token := getenv(EnvBitbucketToken); token != "" {
		if user := getenv(EnvBitbucketUsername); user != "" {
			store.Add(report.PlatformBitbucket, Credential{
				Source:   SourceEnv,
				Token:    token,
				Username: user,
			})
		}
	}

	if token := getenv(EnvCodebergToken); token != "" {
		store.Add(report.PlatformCodeberg, Credential{Source: SourceEnv, Token: token})
	}

	if key := getenv(EnvBugzillaAPIKey); key != "" {
		store.Add(report.PlatformBugzilla, Credential{
			Source: SourceEnv,
			Token:  key,
			Host:   getenv(EnvBugzillaURL),
		})
	}

	if host := getenv(EnvSMTPHost); host != "" {
		store.Add(report.PlatformEmail, Credential{
			Source:   SourceEnv,
			Token:    getenv(EnvSMTPPassword),
			Host:     host,
			Username: getenv(EnvSMTPUsername),
			Extra: map[string]string{
				"port": getenv(EnvSMTPPort),
				"from": getenv(EnvSMTPFrom),
				"to":   getenv(EnvSMTPTo),
			},
		})
	}
}

// ghHostsFile mirrors the GitHub CLI hosts.yml layout:
//
//	github.com:
//	    user: monalisa
//	    oauth_token: <token>
type ghHostEntry struct {
	User       string `yaml:"user"`
	OauthToken string `yaml:"oauth_token"`
}

func loadGHHosts(store *Store, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // absent source, empty contribution
	}

	hosts := map[string]ghHostEntry{}
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		logging.WithComponent("credentials").Warn("skipping malformed gh hosts file",
			"path", path, "error", err)
		return
	}

	for host, entry := range hosts {
		if entry.OauthToken == "" {
			continue
		}
		store.Add(report.PlatformGitHub, Credential{
			Source:   SourceCLIConfig,
			Token:    entry.OauthToken,
			Host:     host,
			Username: entry.User,
		})
	}
}

// glabConfigFile mirrors the GitLab CLI config.yml layout:
//
//	hosts:
//	  gitlab.com:
//	    token: <token>
//	    user: monalisa
type glabConfigFile struct {
	Hosts map[string]struct {
		Token string `yaml:"token"`
		User  string `yaml:"user"`
	} `yaml:"hosts"`
}

func loadGlabConfig(store *Store, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var cfg glabConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logging.WithComponent("credentials").Warn("skipping malformed glab config file",
			"path", path, "error", err)
		return
	}

	for host, entry := range cfg.Hosts {
		if entry.Token == "" {
			continue
		}
		store.Add(report.PlatformGitLab, Credential{
			Source:   SourceCLIConfig,
			Token:    entry.Token,
			Host:     host,
			Username: entry.User,
		})
	}
}
