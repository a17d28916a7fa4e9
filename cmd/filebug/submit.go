package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/filebug/filebug/internal/config"
	"github.com/filebug/filebug/internal/dedup"
	"github.com/filebug/filebug/internal/logging"
	"github.com/filebug/filebug/internal/report"
)

type submitFlags struct {
	title     string
	body      string
	bodyFile  string
	repo      string
	platforms []string
	labels    []string
	dryRun    bool
	noDedupe  bool
	component string
	bugVer    string
	jsonOut   bool
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "issue title")
	cmd.Flags().StringVarP(&f.body, "body", "b", "", "issue body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read issue body from file")
	cmd.Flags().StringVarP(&f.repo, "repo", "r", "", "target identifier (owner/repo, or product for bugzilla)")
	cmd.Flags().StringSliceVarP(&f.platforms, "platforms", "p", []string{"github"}, "platforms to submit to")
	cmd.Flags().StringSliceVarP(&f.labels, "label", "l", nil, "labels to apply")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "show what would be submitted without submitting")
	cmd.Flags().BoolVar(&f.noDedupe, "no-dedupe", false, "skip the duplicate check")
	cmd.Flags().StringVar(&f.component, "component", "", "bugzilla component (default from config)")
	cmd.Flags().StringVar(&f.bugVer, "product-version", "", "bugzilla product version (default from config)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "emit results as JSON")
}

// options resolves flags into submit options, filling bugzilla fallbacks
// from configuration. Unknown platform names are filtered out up front.
func (f *submitFlags) options(cfg *config.Config) report.SubmitOptions {
	component := f.component
	version := f.bugVer
	if component == "" && cfg.Adapters.Bugzilla != nil {
		component = cfg.Adapters.Bugzilla.Component
	}
	if version == "" && cfg.Adapters.Bugzilla != nil {
		version = cfg.Adapters.Bugzilla.Version
	}

	return report.SubmitOptions{
		Platforms: report.FilterPlatforms(f.platforms),
		DryRun:    f.dryRun,
		Dedupe:    cfg.Dedupe.Enabled && !f.noDedupe,
		Labels:    f.labels,
		Component: component,
		Version:   version,
	}
}

func newSubmitCmd(configPath *string) *cobra.Command {
	flags := &submitFlags{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a bug report to one or more platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				logging.Suppress()
			}

			body := flags.body
			if flags.bodyFile != "" {
				data, err := os.ReadFile(flags.bodyFile)
				if err != nil {
					return fmt.Errorf("failed to read body file: %w", err)
				}
				body = string(data)
			}

			issue := report.Issue{
				Title:  flags.title,
				Body:   body,
				Repo:   flags.repo,
				Labels: flags.labels,
			}

			d := buildDispatcher(cfg)
			id, results, err := d.Submit(cmd.Context(), issue, flags.options(cfg))
			if err != nil {
				return err
			}

			return printResults(cmd, id, results, flags.jsonOut)
		},
	}

	flags.register(cmd)
	return cmd
}

// batchFile is the YAML shape consumed by `filebug batch`.
type batchFile struct {
	Issues []report.Issue `yaml:"issues"`
}

func newBatchCmd(configPath *string) *cobra.Command {
	flags := &submitFlags{}
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Submit multiple bug reports from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				logging.Suppress()
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read batch file: %w", err)
			}
			var batch batchFile
			if err := yaml.Unmarshal(data, &batch); err != nil {
				return fmt.Errorf("failed to parse batch file: %w", err)
			}

			d := buildDispatcher(cfg)
			items := d.SubmitBatch(cmd.Context(), batch.Issues, flags.options(cfg))

			failures := 0
			for _, item := range items {
				if item.Err != nil {
					failures++
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %q: %v\n", item.Issue.Title, item.Err)
					continue
				}
				if err := printResults(cmd, item.ID, item.Results, flags.jsonOut); err != nil {
					return err
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d issue(s) rejected", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with an issues list (required)")
	_ = cmd.MarkFlagRequired("file")
	flags.register(cmd)
	return cmd
}

func newCheckCmd() *cobra.Command {
	var title, body string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the dedup fingerprint for an issue",
		Run: func(cmd *cobra.Command, args []string) {
			issue := report.Issue{Title: title, Body: body}
			fmt.Fprintf(cmd.OutOrStdout(), "normalized title: %s\n", dedup.Normalize(title))
			fmt.Fprintf(cmd.OutOrStdout(), "content hash:     %s\n", dedup.ContentHash(issue))
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "issue title")
	cmd.Flags().StringVarP(&body, "body", "b", "", "issue body")
	return cmd
}

func newCredsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "creds",
		Short: "Show how many credentials are loaded per platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(*configPath); err != nil {
				return err
			}
			store := buildStore()
			for _, platform := range report.AllPlatforms {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", platform, store.PoolSize(platform))
			}
			return nil
		},
	}
}

// printResults renders one submission's results, as JSON or text.
func printResults(cmd *cobra.Command, id string, results []report.SubmissionResult, jsonOut bool) error {
	out := cmd.OutOrStdout()

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			SubmissionID string                    `json:"submission_id"`
			Results      []report.SubmissionResult `json:"results"`
		}{id, results})
	}

	fmt.Fprintf(out, "submission %s\n", id)
	for _, res := range results {
		switch res.Status {
		case report.StatusSuccess:
			fmt.Fprintf(out, "  ✓ %-10s %s\n", res.Platform, res.URL)
		case report.StatusDryRun:
			fmt.Fprintf(out, "  ○ %-10s dry run: would submit %q\n", res.Platform, res.WouldSubmit.Title)
		case report.StatusSkipped:
			fmt.Fprintf(out, "  - %-10s skipped (%s): %s\n", res.Platform, res.Reason, res.Detail)
		default:
			fmt.Fprintf(out, "  ✗ %-10s %s\n", res.Platform, strings.TrimSpace(res.Detail))
		}
	}
	return nil
}
