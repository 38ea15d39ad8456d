package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func newAssistCommand(a *app) *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   "assist <kind> <payload-file>",
		Short: "Run an AI-assist job (suggest, chat, diff, clo-check, summary)",
		Long: `Start an AI-assist job with the JSON payload in <payload-file> ("-"
reads stdin) and poll it once per interval until it finishes. Polling
gives up after the configured attempts; the job keeps running and can
be checked later with "assist status".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseAssistKind(args[0])
			if !ok {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown assist kind %q", args[0]))
			}
			payload, err := readPayload(cmd, args[1])
			if err != nil {
				return err
			}
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			jobID, err := a.assist.Start(cmd.Context(), session, kind, payload)
			if err != nil {
				return err
			}
			if detach {
				fmt.Fprintln(a.out, jobID)
				return nil
			}
			job, err := a.assist.Await(cmd.Context(), session, jobID)
			if errors.Is(err, appErrors.ErrPollTimeout) {
				return fmt.Errorf("job %s is still running; check it with `syllabusctl assist status %s`: %w", jobID, jobID, err)
			}
			if err != nil {
				return err
			}
			return a.printJSON(job)
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "Print the job id and return without polling")

	status := &cobra.Command{
		Use:   "status <jobId>",
		Short: "Show the current state of an assist job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			job, err := a.assist.Job(cmd.Context(), session, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(job)
		},
	}
	cmd.AddCommand(status)
	return cmd
}

func readPayload(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(raw) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payload must be JSON")
	}
	return raw, nil
}

func newHealthCommand(a *app) *cobra.Command {
	var wait string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every backend",
		Long: `Probe the /health endpoint of every configured backend. With --wait
the named backend is polled until it answers or the attempts run out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait != "" {
				result, err := a.health.WaitHealthy(cmd.Context(), wait)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s is up (%d) after %s\n", result.Service, result.StatusCode, result.Duration)
				return nil
			}

			report := a.health.Report(cmd.Context())
			for _, svc := range report.Services {
				state := "up"
				if !svc.Reachable {
					state = "DOWN"
				}
				line := fmt.Sprintf("%-13s %-5s %s", svc.Service, state, svc.URL)
				if svc.Error != "" {
					line += "  " + svc.Error
				}
				fmt.Fprintln(a.out, line)
			}
			if !report.Healthy {
				return appErrors.Clone(appErrors.ErrUpstreamUnavailable, "one or more backends are unreachable")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&wait, "wait", "", "Poll the named backend until it is reachable")
	return cmd
}

func newNotificationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show the current notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			snapshot, err := a.notifications.Refresh(cmd.Context(), session)
			if err != nil {
				return err
			}
			return a.printJSON(snapshot)
		},
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow the notification stream until interrupted",
		Long: `Subscribe to the notification stream. Each event triggers a full
refetch and prints the unread count. The stream is reopened when it
drops; a rejected session ends the watch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			a.announceRefresh = true
			ctx := cmd.Context()
			a.notifications.Start(ctx)
			defer a.notifications.Stop()

			if _, err := a.notifications.Refresh(ctx, session); err != nil {
				return err
			}
			a.notifications.EnsureWatching(ctx, session)
			tick := time.NewTicker(time.Second)
			defer tick.Stop()
			for a.notifications.Watching(session) {
				select {
				case <-ctx.Done():
					return nil
				case <-tick.C:
				}
			}
			return appErrors.Clone(appErrors.ErrUnauthorized, "notification stream closed: session rejected")
		},
	}

	markAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			snapshot, err := a.notifications.MarkAllRead(cmd.Context(), session)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "unread=%d\n", snapshot.UnreadCount)
			return nil
		},
	}

	cmd.AddCommand(watch, markAll)
	return cmd
}
