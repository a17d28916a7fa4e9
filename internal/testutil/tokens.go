// Package testutil provides testing utilities for the filebug project.
package testutil

// Safe test tokens that won't trigger GitHub's push protection.
// These are intentionally simple and obviously fake to avoid secret scanning.
const (
	// FakeGitHubToken is a safe test token for GitHub API authentication.
	FakeGitHubToken = "test-github-token"

	// FakeGitLabToken is a safe test token for GitLab API authentication.
	FakeGitLabToken = "test-gitlab-token"

	// FakeBitbucketToken is a safe test app password for Bitbucket.
	FakeBitbucketToken = "test-bitbucket-app-password"

	// FakeBitbucketUser is a safe test username for Bitbucket basic auth.
	FakeBitbucketUser = "test-bitbucket-user"

	// FakeCodebergToken is a safe test token for Codeberg (Gitea) API authentication.
	FakeCodebergToken = "test-codeberg-token"

	// FakeBugzillaKey is a safe test API key for Bugzilla.
	FakeBugzillaKey = "test-bugzilla-api-key"

	// FakeSMTPPassword is a safe test password for SMTP authentication.
	FakeSMTPPassword = "test-smtp-password"
)
