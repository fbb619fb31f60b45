package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jobsieve/internal/config"
	"jobsieve/internal/scoring"
	"jobsieve/internal/store"
)

type jobView struct {
	ID          int64            `json:"id"`
	Source      string           `json:"source"`
	Title       string           `json:"title"`
	Company     string           `json:"company"`
	Location    string           `json:"location"`
	Remote      bool             `json:"remote"`
	URL         string           `json:"url"`
	SalaryMin   *float64         `json:"salary_min,omitempty"`
	SalaryMax   *float64         `json:"salary_max,omitempty"`
	Currency    string           `json:"salary_currency,omitempty"`
	Score       float64          `json:"score"`
	Factors     []scoring.Factor `json:"factors,omitempty"`
	GhostScore  float64          `json:"ghost_score"`
	GhostFlags  []string         `json:"ghost_flags,omitempty"`
	PostedAt    *time.Time       `json:"posted_at,omitempty"`
	FirstSeenAt time.Time        `json:"first_seen_at"`
	LastSeenAt  time.Time        `json:"last_seen_at"`
	TimesSeen   int              `json:"times_seen"`
}

func newJobView(job *store.Job) jobView {
	view := jobView{
		ID:          job.ID,
		Source:      job.Source,
		Title:       job.Title,
		Company:     job.Company,
		Location:    job.Location,
		Remote:      job.Remote,
		URL:         job.URL,
		SalaryMin:   job.SalaryMin,
		SalaryMax:   job.SalaryMax,
		Currency:    job.SalaryCurrency,
		Score:       job.Score,
		GhostScore:  job.GhostScore,
		GhostFlags:  job.GhostFlags,
		PostedAt:    job.PostedAt,
		FirstSeenAt: job.CreatedAt,
		LastSeenAt:  job.LastSeenAt,
		TimesSeen:   job.TimesSeen,
	}
	if job.FactorBreakdown != "" {
		_ = json.Unmarshal([]byte(job.FactorBreakdown), &view.Factors)
	}
	return view
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var minScore float64
	var source string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored jobs by score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				jobs, err := st.ListJobs(cmd.Context(), store.ListOptions{Limit: limit, MinScore: minScore, Source: source})
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]jobView, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, newJobView(job))
					}
					return writeJSON(cmd, views)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs match")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						formatScore(job.Score),
						ghostLabel(job),
						job.Title,
						job.Company,
						locationLabel(job),
						strconv.Itoa(job.TimesSeen),
						humanize.Time(job.LastSeenAt),
					})
				}
				writeTable(cmd,
					[]string{"ID", "Score", "Ghost", "Title", "Company", "Location", "Seen", "Last seen"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum number of jobs to list")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Only list jobs scoring at least this much")
	cmd.Flags().StringVar(&source, "source", "", "Only list jobs from this source id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print jobs as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its score breakdown and applications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				job, err := st.GetJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				apps, err := st.ApplicationsForJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := newJobView(job)
				if asJSON {
					return writeJSON(cmd, struct {
						jobView
						Applications []store.Application `json:"applications"`
					}{view, apps})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s at %s\n", job.Title, valueOr(job.Company, "unknown company"))
				fmt.Fprintf(out, "Location: %s\n", locationLabel(job))
				fmt.Fprintf(out, "URL: %s\n", job.URL)
				fmt.Fprintf(out, "Score: %s\n", formatScore(job.Score))
				fmt.Fprintf(out, "Ghost: %s (%.0f)\n", ghostLabel(job), job.GhostScore)
				fmt.Fprintf(out, "Seen %d times, first %s, last %s\n", job.TimesSeen,
					humanize.Time(job.CreatedAt), humanize.Time(job.LastSeenAt))

				if len(view.Factors) > 0 {
					rows := make([][]string, 0, len(view.Factors))
					for _, f := range view.Factors {
						rows = append(rows, []string{f.Name, formatScore(f.Points), formatScore(f.Weight), f.Reason})
					}
					writeTable(cmd, []string{"Factor", "Points", "Weight", "Reason"}, rows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft})
				}
				for _, app := range apps {
					fmt.Fprintf(out, "Application %d: %s %s %s\n", app.ID, app.Status,
						app.CreatedAt.Local().Format(time.DateOnly), app.Note)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job as JSON")
	return cmd
}

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var status string
	var note string

	cmd := &cobra.Command{
		Use:   "apply <job-id>",
		Short: "Record an application against a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withWriter(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				app, err := st.LinkApplication(cmd.Context(), id, status, note)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded application %d (%s) for job %d\n", app.ID, app.Status, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "applied", "Application status")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	return cmd
}

func newRescoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore",
		Short: "Recompute scores for every stored job with the current preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWriter(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				count, err := scoring.NewEngine(cfg.Scoring).Rescore(cmd.Context(), st)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rescored %d jobs\n", count)
				return nil
			})
		},
	}
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ghostLabel(job *store.Job) string {
	if len(job.GhostFlags) == 0 {
		return "-"
	}
	return strings.Join(job.GhostFlags, ",")
}

func locationLabel(job *store.Job) string {
	location := valueOr(job.Location, "unknown")
	if job.Remote && !strings.Contains(strings.ToLower(location), "remote") {
		location += " (remote)"
	}
	return location
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
