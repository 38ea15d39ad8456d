package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
)

// newActionCommand builds approve, reject and require-edit. The verb doubles
// as the workflow action.
func newActionCommand(a *app, verb, short string) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   verb + " <workflowId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAction(cmd, a, args[0], service.ParseAction(verb), comment)
		},
	}
	cmd.Flags().StringVarP(&comment, "message", "m", "", "Review comment (required for reject and require-edit)")
	return cmd
}

func newPublishCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <workflowId>",
		Short: "Publish an approved syllabus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAction(cmd, a, args[0], models.ActionPublish, "")
		},
	}
}

func dispatchAction(cmd *cobra.Command, a *app, workflowID string, action models.WorkflowAction, comment string) error {
	session, err := a.session(cmd.Context())
	if err != nil {
		return err
	}
	result, err := a.dispatcher.Dispatch(cmd.Context(), session, workflowID, action, comment)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s by %s at %s, workflow now %s (%d history entries)\n",
		result.Entry.Action,
		result.Entry.ActorID,
		result.Entry.Timestamp.Format("2006-01-02 15:04:05"),
		result.State,
		len(result.History),
	)
	return nil
}

func newCommentsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Read and write review comments",
	}

	list := &cobra.Command{
		Use:   "list <syllabusId>",
		Short: "List comments grouped by section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			thread, err := a.thread.List(cmd.Context(), session, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d comment(s) on %s\n", thread.Total, thread.SyllabusID)
			for _, section := range thread.Sections {
				if len(section.Comments) == 0 {
					continue
				}
				fmt.Fprintf(a.out, "[%s]\n", section.SectionKey)
				for _, c := range section.Comments {
					fmt.Fprintf(a.out, "  %s  %s: %s\n", c.ID, c.AuthorID, c.Content)
				}
			}
			return nil
		},
	}

	var section string
	add := &cobra.Command{
		Use:   "add <syllabusId> <content...>",
		Short: "Attach a comment to a syllabus section",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			comment, err := a.thread.Add(cmd.Context(), session, dto.AddCommentRequest{
				SyllabusID: args[0],
				SectionKey: section,
				Content:    strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added comment %s on [%s]\n", comment.ID, comment.SectionKey)
			return nil
		},
	}
	add.Flags().StringVarP(&section, "section", "s", "", "Section key (general when empty)")

	del := &cobra.Command{
		Use:   "delete <commentId>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.thread.Delete(cmd.Context(), session, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted comment %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}
