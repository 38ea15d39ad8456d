// Package cli implements the syllabusctl command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Services are constructed lazily
// once flags are parsed so --help never touches config or the state dir.
func NewRootCommand(version string, out io.Writer) *cobra.Command {
	opts := appOptions{stateDir: defaultStateDir(), out: out}
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "syllabusctl",
		Short: "Syllabus portal command line client",
		Long: `syllabusctl drafts, submits and reviews syllabi against the portal
backends. Sessions and local drafts are kept in the state directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.close()
			}
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.stateDir, "state-dir", opts.stateDir, "Directory holding the session and local drafts")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log backend calls to stderr")

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newDraftCommand(a),
		newSubmitCommand(a),
		newVersionsCommand(a),
		newCompareCommand(a),
		newActionCommand(a, "approve", "Approve a syllabus under review"),
		newActionCommand(a, "reject", "Reject a syllabus under review"),
		newActionCommand(a, "require-edit", "Send a syllabus back to its author"),
		newPublishCommand(a),
		newCommentsCommand(a),
		newAssistCommand(a),
		newHealthCommand(a),
		newNotificationsCommand(a),
	)
	return root
}

// Execute runs the CLI.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand(version, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
