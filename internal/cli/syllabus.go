package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
)

func newDraftCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save and inspect syllabus drafts",
	}

	save := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a syllabus form as a new lineage or the next version",
		Long: `Read a syllabus form (JSON) and persist it. A form without an id
creates a new lineage; a form with an id creates the next version of
its lineage. The form is kept as a local draft first, so it survives a
failed save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			form, err := readForm(args[0])
			if err != nil {
				return err
			}
			version, err := a.versioning.SaveDraft(cmd.Context(), session, form)
			if err != nil {
				return err
			}
			return a.printJSON(version)
		},
	}

	show := &cobra.Command{
		Use:   "show [key]",
		Short: "Print a local draft (default: the unsaved new draft)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			key := models.NewDraftKey
			if len(args) == 1 {
				key = args[0]
			}
			draft, err := a.versioning.LoadDraft(cmd.Context(), session, key)
			if err != nil {
				return err
			}
			return a.printJSON(draft)
		},
	}

	discard := &cobra.Command{
		Use:   "discard <key>",
		Short: "Drop a local draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.versioning.DiscardDraft(cmd.Context(), session, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Discarded draft %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(save, show, discard)
	return cmd
}

func newSubmitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <syllabusId>",
		Short: "Submit a draft for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			version, err := a.versioning.Submit(cmd.Context(), session, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Submitted %s v%d: %s\n", version.SubjectCode, version.VersionNo, version.Status)
			return nil
		},
	}
}

func newVersionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <rootId>",
		Short: "List every version of a lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			page, err := a.versioning.ListVersions(cmd.Context(), session, args[0])
			if err != nil {
				return err
			}
			for _, v := range page.Items {
				fmt.Fprintf(a.out, "v%-3d %-18s %s\n", v.VersionNo, v.Status, v.ID)
			}
			return nil
		},
	}
}

func newCompareCommand(a *app) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "compare <rootId> <v1> <v2>",
		Short: "Compare two versions of a lineage",
		Long: `Print the field differences between two versions. With --export the
comparison is rendered as csv or pdf and written to --output (default:
the generated filename in the current directory).`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v1, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[1])
			}
			v2, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[2])
			}
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			cmp, err := a.versioning.Compare(cmd.Context(), session, args[0], v1, v2)
			if err != nil {
				return err
			}

			if format == "" {
				if len(cmp.Changes) == 0 {
					fmt.Fprintln(a.out, "No differences.")
					return nil
				}
				for _, change := range cmp.Changes {
					fmt.Fprintf(a.out, "%s\n  - %s\n  + %s\n", change.Field, change.Left, change.Right)
				}
				return nil
			}

			rendered, err := a.exporter.Export(cmp, service.ExportFormat(format))
			if err != nil {
				return err
			}
			target := output
			if target == "" {
				target = rendered.Filename
			}
			if err := os.WriteFile(filepath.Clean(target), rendered.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(a.out, "Wrote %s (%d bytes)\n", target, rendered.Size)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "export", "", "Render the comparison as csv or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Export file path")
	return cmd
}

func readForm(path string) (models.SyllabusForm, error) {
	var form models.SyllabusForm
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return form, fmt.Errorf("read form: %w", err)
	}
	if err := json.Unmarshal(raw, &form); err != nil {
		return form, fmt.Errorf("parse form %s: %w", path, err)
	}
	return form, nil
}
