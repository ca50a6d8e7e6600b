package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"lead-routing/app"
	"lead-routing/services/assignment"
	"lead-routing/services/export"
	"lead-routing/services/importer"

	"github.com/spf13/cobra"
)

type opener func(ctx context.Context) (*app.App, error)

type cli struct {
	open        opener
	actor       string
	institution string
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:   "leadctl",
		Short: "Lead routing administration",
		Long: `leadctl runs administrative operations against the lead routing store.
Every command acts on a single institution's queue.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.actor, "actor", "leadctl", "actor id recorded in the audit trail")
	root.PersistentFlags().StringVarP(&c.institution, "institution", "i", "", "institution id (required)")
	_ = root.MarkPersistentFlagRequired("institution")

	root.AddCommand(
		c.importCmd(),
		c.statusCmd(),
		c.sweepCmd(),
		c.rebuildCmd(),
		c.healthCmd(),
		c.exportCmd(),
		c.counselorsCmd(),
		c.deleteCmd(),
		c.cleanupCmd(),
	)
	return root
}

// run opens the application for the duration of fn.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open application: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Queue every lead in an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				report, err := importer.New(a.Coordinator, a.Log).Import(ctx, c.actor, c.institution, f)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d of %d leads\n", report.Succeeded, report.Total)
				for _, failure := range report.Failed {
					fmt.Fprintf(out, "  row %d (%s): %s\n", failure.Row, failure.Email, failure.Error)
				}
				return nil
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the queue with wait estimates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				status, err := a.Coordinator.GetQueueStatus(ctx, c.institution)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Institution: %s\n", status.InstitutionName)
				fmt.Fprintf(out, "Queued: %d  Available counselors: %d  Busy: %d\n",
					status.TotalLeadsInQueue, status.AvailableCounselors, status.BusyCounselors)
				fmt.Fprintf(out, "Estimated processing time: %s\n\n", status.EstimatedProcessingTime)

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "POS\tLEAD\tNAME\tPRIORITY\tSCORE\tWAIT")
				for _, l := range status.QueuedLeads {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0f\t%s\n",
						l.Position, l.LeadID, l.Name, l.Priority, l.Score, l.EstimatedWait)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Give every counselor with spare capacity the next queued lead",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				assigned, err := a.Coordinator.AutoAssign(ctx, c.actor, c.institution)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, l := range assigned {
					fmt.Fprintf(out, "%s -> %s\n", l.ID, *l.AssignedCounselorID)
				}
				fmt.Fprintf(out, "Assigned %d leads\n", len(assigned))
				return nil
			})
		},
	}
}

func (c *cli) rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rescore queued leads and rebuild the queue order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Coordinator.RebuildQueue(ctx, c.actor, c.institution)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue rebuilt with %d leads\n", len(entries))
				return nil
			})
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Compare the working queue with durable storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				h, err := a.Coordinator.QueueHealthCheck(ctx, c.institution)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: working=%d persisted=%d\n", h.Status, h.InMemorySize, h.PersistedCount)
				if !h.InSync {
					return fmt.Errorf("queue for %s is out of sync: %s", c.institution, h.Detail)
				}
				return nil
			})
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the queue status as xlsx or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				status, err := a.Coordinator.GetQueueStatus(ctx, c.institution)
				if err != nil {
					return err
				}
				if output == "-" {
					return export.Write(cmd.OutOrStdout(), f, status)
				}
				if output == "" {
					output = f.FileName(status)
				}
				return writeFile(output, func(w io.Writer) error { return export.Write(w, f, status) })
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "export format: xlsx or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path, or - for stdout (default derived from the institution and time)")
	return cmd
}

func (c *cli) counselorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counselors",
		Short: "Show counselor workload and who can take a lead now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				loads, err := a.Coordinator.GetCounselorWorkloads(ctx, c.institution)
				if err != nil {
					return err
				}
				avail, err := a.Coordinator.AvailableCounselors(ctx, c.institution)
				if err != nil {
					return err
				}
				ready := make(map[string]bool, len(avail.AvailableCounselors))
				for _, w := range avail.AvailableCounselors {
					ready[w.CounselorID] = true
				}

				out := cmd.OutOrStdout()
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "COUNSELOR\tNAME\tLEADS\tCAPACITY\tUTIL\tREADY")
				for _, w := range loads {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f%%\t%v\n",
						w.CounselorID, w.CounselorName, w.CurrentLeadCount, w.MaxCapacity, w.UtilizationPercentage, ready[w.CounselorID])
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Available: %d of %d\n", avail.TotalAvailable, avail.TotalCounselors)
				return nil
			})
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete LEAD",
		Short: "Delete a lead, taking it out of the queue or freeing its counselor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				lead, err := a.Coordinator.GetLead(ctx, args[0])
				if err != nil {
					return err
				}
				if lead.InstitutionID != c.institution {
					return fmt.Errorf("lead %s belongs to institution %s, not %s", lead.ID, lead.InstitutionID, c.institution)
				}
				if err := a.Coordinator.DeleteLead(ctx, c.actor, lead.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted lead %s (%s)\n", lead.ID, lead.Status)
				return nil
			})
		},
	}
}

func (c *cli) cleanupCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete completed and rejected leads closed before --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Coordinator.CleanupCompletedLeads(ctx, c.actor, c.institution, olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d closed leads\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", assignment.DefaultCleanupAge, "minimum time since a lead was closed")
	return cmd
}

func writeFile(path string, render func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
