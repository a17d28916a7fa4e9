package main

import (
	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/adapters/bitbucket"
	"github.com/filebug/filebug/internal/adapters/bugzilla"
	"github.com/filebug/filebug/internal/adapters/codeberg"
	"github.com/filebug/filebug/internal/adapters/email"
	"github.com/filebug/filebug/internal/adapters/github"
	"github.com/filebug/filebug/internal/adapters/gitlab"
	"github.com/filebug/filebug/internal/config"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/dedup"
	"github.com/filebug/filebug/internal/dispatcher"
)

// buildStore loads credentials from the environment and CLI tool configs.
func buildStore() *credentials.Store {
	return credentials.Load(credentials.LoadOptions{})
}

// buildDispatcher assembles the credential store, dedup index, and adapter
// registry per the configuration.
func buildDispatcher(cfg *config.Config) *dispatcher.Dispatcher {
	store := buildStore()
	index := dedup.NewIndex(cfg.Dedupe.Threshold)

	adapters.Reset()
	adapters.Register(github.New(cfg.Adapters.GitHub.Mode()))
	adapters.Register(gitlab.New(cfg.Adapters.GitLab.Mode()))
	adapters.Register(bitbucket.New())
	adapters.Register(codeberg.New())
	adapters.Register(bugzilla.New(cfg.Adapters.Bugzilla.URL))
	adapters.Register(email.New())

	return dispatcher.New(store, index, adapters.All())
}
