package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/langsched/internal/excel"
	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/pkg/models"
)

func importCmd() *cobra.Command {
	importConfig := excel.DefaultImportConfig()

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import language objects from an xlsx or csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			importConfig.FilePath = args[0]
			result, err := excel.ImportObjects(cmd.Context(), importConfig, a.objects)
			if err != nil {
				return err
			}

			fmt.Printf("Processed: %d, created: %d, updated: %d, skipped: %d\n",
				result.TotalProcessed, result.Created, result.Updated, result.Skipped)
			for _, e := range result.Errors {
				fmt.Println("  " + e)
			}

			total, err := a.objects.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Curriculum size: %d\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&importConfig.SheetName, "sheet", importConfig.SheetName, "Sheet to read from xlsx files")
	cmd.Flags().IntVar(&importConfig.StartRow, "start-row", importConfig.StartRow, "First data row (1-based)")
	return cmd
}

func queueCmd() *cobra.Command {
	var (
		userID int64
		limit  int
		xlsx   string
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the ranked learning queue of a learner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.service.RegisterUser(ctx, userID, "", ""); err != nil {
				return err
			}
			items, err := a.service.BuildQueue(ctx, userID, time.Now())
			if err != nil {
				return err
			}

			if xlsx != "" {
				if err := excel.ExportQueue(xlsx, items); err != nil {
					return err
				}
				fmt.Printf("Exported %d items to %s\n", len(items), xlsx)
				return nil
			}

			items, s := limitQueue(items, limit)
			printItems(items)
			fmt.Printf("\n%d items, %d due, %d new\n", s.Total, s.Due, s.New)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Learner ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to print (0 for all)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Write the full queue to this xlsx file instead")
	cmd.MarkFlagRequired("user")
	return cmd
}

func sessionCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the next practice session of a learner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.service.RegisterUser(ctx, userID, "", ""); err != nil {
				return err
			}
			items, err := a.service.NextSession(ctx, userID, time.Now())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("Nothing to study")
				return nil
			}
			printItems(items)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Learner ID")
	cmd.MarkFlagRequired("user")
	return cmd
}

func reviewCmd() *cobra.Command {
	var (
		userID int64
		resp   models.Response
		wrong  bool
	)

	cmd := &cobra.Command{
		Use:   "review <object-id>",
		Short: "Record a learner's response to one object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.service.RegisterUser(ctx, userID, "", ""); err != nil {
				return err
			}

			resp.Correct = !wrong
			outcome, err := a.service.RecordResponse(ctx, userID, args[0], resp, time.Now())
			if err != nil {
				return err
			}

			st := outcome.State
			fmt.Printf("Rating: %d\n", outcome.Rating)
			fmt.Printf("Stage: %s -> %s\n", outcome.Transition.From, outcome.Transition.To)
			fmt.Printf("Stability: %.2f days, difficulty: %.2f\n", st.Card.Stability, st.Card.Difficulty)
			fmt.Printf("Accuracy: %.2f (cued %.2f), exposures: %d\n",
				st.CueFreeAccuracy, st.CueAssistedAccuracy, st.ExposureCount)
			fmt.Printf("Next review: %s, suggested cue level: %d\n",
				outcome.NextReview.Local().Format("2006-01-02 15:04"), outcome.CueLevel)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Learner ID")
	cmd.Flags().BoolVar(&wrong, "wrong", false, "The answer was incorrect")
	cmd.Flags().IntVar(&resp.CueLevel, "cue", 0, "Scaffolding level used (0-3)")
	cmd.Flags().Int64Var(&resp.ResponseTimeMs, "ms", 3000, "Response time in milliseconds")
	cmd.MarkFlagRequired("user")
	return cmd
}

func levelCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "level <beginner|intermediate|advanced|theta>",
		Short: "Set a learner's ability and derive priority weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theta, err := parseLevelArg(args[0])
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.service.RegisterUser(ctx, userID, "", ""); err != nil {
				return err
			}
			state, err := a.service.SetLevel(ctx, userID, theta)
			if err != nil {
				return err
			}
			fmt.Printf("Theta: %.2f, weights F=%.2f R=%.2f E=%.2f\n",
				state.Theta, state.Weights.F, state.Weights.R, state.Weights.E)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Learner ID")
	cmd.MarkFlagRequired("user")
	return cmd
}

func rebuildCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Replay review history with the configured FSRS weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			ids := []int64{userID}
			if userID == 0 {
				users, err := a.users.GetAll(ctx)
				if err != nil {
					return err
				}
				ids = ids[:0]
				for _, u := range users {
					ids = append(ids, u.ID)
				}
			}

			for _, id := range ids {
				n, err := a.service.RebuildCards(ctx, id)
				if err != nil {
					return fmt.Errorf("user %d: %w", id, err)
				}
				fmt.Printf("User %d: %d cards rebuilt\n", id, n)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Learner ID (all learners when omitted)")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		userID int64
		limit  int
		days   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reviews of a learner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			logs, err := a.logs.GetByUser(ctx, userID, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOBJECT\tRATING\tCUE\tMS\tSTAGE")
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s -> %s\n",
					l.ReviewedAt.Local().Format("2006-01-02 15:04"), l.ObjectID,
					l.Rating, l.CueLevel, l.ResponseTimeMs, l.StageBefore, l.StageAfter)
			}
			w.Flush()

			return printRecentStats(ctx, a, userID, days)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Learner ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of reviews to show")
	cmd.Flags().IntVar(&days, "days", 7, "Window for the accuracy summary")
	cmd.MarkFlagRequired("user")
	return cmd
}

func printRecentStats(ctx context.Context, a *app, userID int64, days int) error {
	stats, err := a.logs.StatsSince(ctx, userID, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		fmt.Printf("\nNo reviews in the last %d days\n", days)
		return nil
	}
	fmt.Printf("\nLast %d days: %d reviews, %.0f%% correct\n",
		days, stats.Total, 100*float64(stats.Correct)/float64(stats.Total))
	return nil
}

func printItems(items []queue.Item) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tCONTENT\tSTAGE\tPRIORITY\tURGENCY\tSCORE\tNEXT")
	for i, it := range items {
		stage := "new"
		if it.Mastery != nil {
			stage = it.Mastery.Stage.String()
		}
		next := "-"
		if it.NextReview != nil {
			next = it.NextReview.Local().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.3f\t%.2f\t%.3f\t%s\n",
			i+1, it.Object.ID, it.Object.Content, stage, it.Priority, it.Urgency, it.FinalScore, next)
	}
	w.Flush()
}

// parseLevelArg accepts a level name or a theta value
func parseLevelArg(arg string) (float64, error) {
	if level, err := priority.ParseLevel(strings.ToLower(arg)); err == nil {
		return priority.ThetaForLevel(level)
	}
	theta, err := strconv.ParseFloat(strings.Replace(arg, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("unknown level %q", arg)
	}
	return theta, nil
}

// limitQueue summarizes the whole queue, then cuts it to limit rows
func limitQueue(items []queue.Item, limit int) ([]queue.Item, queue.Summary) {
	s := queue.Summarize(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, s
}
