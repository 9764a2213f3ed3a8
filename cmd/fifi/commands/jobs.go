package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/schedule"
)

// JobsCmd groups scheduled announcement job management.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled announcement jobs",
	Long: `Manage scheduled announcement jobs.

Job management commands:
  fifi jobs ls             # List all jobs
  fifi jobs add            # Add a job
  fifi jobs preview <id>   # Show when a job would fire next
  fifi jobs pause <id>     # Pause a job
  fifi jobs resume <id>    # Resume a paused job
  fifi jobs rm <id>        # Remove a job`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsLs()
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled job",
	Long: `Add a scheduled announcement job.

Recurrence types:
  once      - fire a single time (--at, ISO timestamp or "YYYY-MM-DD HH:MM")
  interval  - fire every N minutes (--minutes, 1..10080)
  daily     - fire every day at a wall-clock time (--time HH:MM)
  weekly    - fire on selected weekdays (--days, Monday=0..Sunday=6; --time HH:MM)

Times for daily and weekly jobs are interpreted in the job's timezone (--tz,
IANA name such as Europe/Berlin; default UTC).

Examples:
  fifi jobs add --name standup --channel 123 --type daily --time 09:30 --tz Europe/Berlin
  fifi jobs add --name movie-night --channel 123 --role 42 --type weekly --days 4 --time 19:00
  fifi jobs add --name maintenance --channel 123 --type once --at "2026-01-15 03:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsAdd(cmd)
	},
}

var jobsPreviewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Show when a job would fire next",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return runJobsPreview(id)
	},
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return runJobsSetActive(id, false)
	},
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return runJobsSetActive(id, true)
	},
}

var jobsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		return runJobsRm(id)
	},
}

func init() {
	jobsAddCmd.Flags().String("name", "", "Job name (required)")
	jobsAddCmd.Flags().Int64Slice("channel", nil, "Destination channel ID (repeatable, required)")
	jobsAddCmd.Flags().Int64Slice("role", nil, "Role ID to mention (repeatable)")
	jobsAddCmd.Flags().String("type", "", "Recurrence type: once, interval, daily, weekly (required)")
	jobsAddCmd.Flags().String("at", "", "Timestamp for once jobs")
	jobsAddCmd.Flags().Int("minutes", 0, "Interval in minutes for interval jobs")
	jobsAddCmd.Flags().IntSlice("days", nil, "Weekdays for weekly jobs (Monday=0..Sunday=6)")
	jobsAddCmd.Flags().String("time", "", "Wall-clock time HH:MM for daily and weekly jobs")
	jobsAddCmd.Flags().String("tz", "", "IANA timezone for the job (default UTC)")
	jobsAddCmd.Flags().String("title", "", "Embed title")
	jobsAddCmd.Flags().String("description", "", "Embed description")
	jobsAddCmd.Flags().String("image", "", "Embed image URL")
	jobsAddCmd.Flags().String("footer", "", "Embed footer")
	jobsAddCmd.Flags().StringSlice("attachment", nil, "Attachment URL (repeatable)")
	jobsAddCmd.Flags().Bool("paused", false, "Create the job paused")
	jobsAddCmd.MarkFlagRequired("name")
	jobsAddCmd.MarkFlagRequired("channel")
	jobsAddCmd.MarkFlagRequired("type")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsAddCmd)
	JobsCmd.AddCommand(jobsPreviewCmd)
	JobsCmd.AddCommand(jobsPauseCmd)
	JobsCmd.AddCommand(jobsResumeCmd)
	JobsCmd.AddCommand(jobsRmCmd)
}

func parseJobID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidRequest, "job id %q", raw)
	}
	return id, nil
}

func runJobsLs() error {
	_, _, jobStore, err := openStores()
	if err != nil {
		return err
	}

	jobs := jobStore.List()
	if len(jobs) == 0 {
		pterm.Info.Println("No scheduled jobs")
		return nil
	}

	now := time.Now()
	data := pterm.TableData{
		{"ID", "NAME", "STATUS", "TYPE", "NEXT RUN (UTC)", "LAST RUN (UTC)"},
	}
	for _, job := range jobs {
		data = append(data, []string{
			strconv.Itoa(job.ID),
			truncate(job.Name, 30),
			job.Status(now),
			string(job.Recurrence.Type),
			formatRunTime(job.NextRun),
			formatRunTime(job.LastRun),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return errors.Wrap(err, "render job table")
	}
	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobsAdd(cmd *cobra.Command) error {
	name, _ := cmd.Flags().GetString("name")
	channels, _ := cmd.Flags().GetInt64Slice("channel")
	roles, _ := cmd.Flags().GetInt64Slice("role")
	recType, _ := cmd.Flags().GetString("type")
	atRaw, _ := cmd.Flags().GetString("at")
	minutes, _ := cmd.Flags().GetInt("minutes")
	days, _ := cmd.Flags().GetIntSlice("days")
	clock, _ := cmd.Flags().GetString("time")
	tz, _ := cmd.Flags().GetString("tz")
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	image, _ := cmd.Flags().GetString("image")
	footer, _ := cmd.Flags().GetString("footer")
	attachments, _ := cmd.Flags().GetStringSlice("attachment")
	paused, _ := cmd.Flags().GetBool("paused")

	rec := schedule.Recurrence{
		Type:    schedule.RecurrenceType(recType),
		AtISO:   atRaw,
		Minutes: minutes,
		Days:    days,
		Time:    clock,
	}
	if err := validateRecurrenceFlags(rec); err != nil {
		return err
	}

	now := time.Now()
	next := schedule.PreviewNextRun(rec, tz, now)
	if next == nil {
		return errors.WithHint(
			errors.Wrapf(errors.ErrInvalidRequest, "recurrence produces no next run"),
			"check --at / --minutes / --time against the examples in 'fifi jobs add --help'")
	}

	_, _, jobStore, err := openStores()
	if err != nil {
		return err
	}

	job := &schedule.Job{
		Name:     name,
		Active:   !paused,
		Channels: channels,
		RoleIDs:  roles,
		Embed: schedule.Embed{
			Title:       title,
			Description: description,
			ImageURL:    image,
			Footer:      footer,
		},
		Attachments: attachments,
		Recurrence:  rec,
		Timezone:    tz,
	}
	if !paused {
		job.NextRun = next
	}

	id, err := jobStore.Append(job)
	if err != nil {
		return errors.Wrap(err, "add job")
	}

	pterm.Success.Printf("Job #%d %q added\n", id, name)
	pterm.Info.Printf("First run: %s UTC\n", next.UTC().Format("2006-01-02 15:04"))
	return nil
}

func validateRecurrenceFlags(rec schedule.Recurrence) error {
	switch rec.Type {
	case schedule.RecurrenceOnce:
		if rec.AtISO == "" {
			return errors.Wrap(errors.ErrInvalidRequest, "once jobs need --at")
		}
	case schedule.RecurrenceInterval:
		if rec.Minutes <= 0 {
			return errors.Wrap(errors.ErrInvalidRequest, "interval jobs need --minutes")
		}
	case schedule.RecurrenceDaily:
		if rec.Time == "" {
			return errors.Wrap(errors.ErrInvalidRequest, "daily jobs need --time")
		}
	case schedule.RecurrenceWeekly:
		if rec.Time == "" {
			return errors.Wrap(errors.ErrInvalidRequest, "weekly jobs need --time")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidRequest, "unknown recurrence type %q", rec.Type)
	}
	return nil
}

func runJobsPreview(id int) error {
	_, _, jobStore, err := openStores()
	if err != nil {
		return err
	}

	job, err := jobStore.Get(id)
	if err != nil {
		return err
	}

	now := time.Now()
	next := schedule.PreviewNextRun(job.Recurrence, job.Timezone, now)
	fmt.Printf("Job #%d %q (%s)\n", job.ID, job.Name, job.Status(now))
	fmt.Printf("  Stored next run:   %s\n", formatRunTime(job.NextRun))
	if next != nil {
		fmt.Printf("  Computed from now: %s\n", formatRunTime(next))
	} else {
		fmt.Printf("  Computed from now: never (recurrence yields no future run)\n")
	}
	return nil
}

func runJobsSetActive(id int, active bool) error {
	_, _, jobStore, err := openStores()
	if err != nil {
		return err
	}

	err = jobStore.Update(id, func(job *schedule.Job) {
		job.Active = active
		if active && job.NextRun == nil {
			job.NextRun = schedule.ComputeNextRun(job, time.Now())
		}
	})
	if err != nil {
		return err
	}

	if active {
		pterm.Success.Printf("Job #%d resumed\n", id)
	} else {
		pterm.Success.Printf("Job #%d paused\n", id)
	}
	return nil
}

func runJobsRm(id int) error {
	_, _, jobStore, err := openStores()
	if err != nil {
		return err
	}

	removed, err := jobStore.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		return errors.Wrapf(errors.ErrNotFound, "job #%d", id)
	}

	pterm.Success.Printf("Job #%d removed\n", id)
	return nil
}
