package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/attendhq/attend/internal/classify"
	"github.com/attendhq/attend/internal/config"
	"github.com/attendhq/attend/internal/insight"
	"github.com/attendhq/attend/internal/live"
	"github.com/attendhq/attend/internal/snapshot"
	"github.com/attendhq/attend/internal/state"
	"github.com/attendhq/attend/internal/taskapi"
	"github.com/attendhq/attend/internal/timeline"
	"github.com/attendhq/attend/internal/triage"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
)

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	pendingColor = color.New(color.FgYellow)
	actionColor  = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgWhite)
	doneColor    = color.New(color.FgGreen)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "attend",
		Short: "Activity intelligence for calls, spaces, and tasks",
		Long: `Attend reconciles activity from voice calls, conversational
spaces, and tasks into one deterministic view of what needs
attention today: a triage inbox, per-contact rollups, and a
day timeline with a forward week strip.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	var snapshotDir string
	rootCmd.PersistentFlags().StringVar(&snapshotDir, "snapshot", "", "Snapshot directory (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("attend %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	rootCmd.AddCommand(newInboxCmd(&snapshotDir))
	rootCmd.AddCommand(newContactsCmd(&snapshotDir))
	rootCmd.AddCommand(newTodayCmd(&snapshotDir))
	rootCmd.AddCommand(newWeekCmd(&snapshotDir))
	rootCmd.AddCommand(newDismissCmd())
	rootCmd.AddCommand(newTasksCmd(&snapshotDir))
	rootCmd.AddCommand(newWatchCmd(&snapshotDir))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSnapshot(override string) (*snapshot.Snapshot, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	dir := cfg.SnapshotDir
	if override != "" {
		dir = override
	}
	if dir == "" {
		return nil, nil, fmt.Errorf("no snapshot directory configured (set snapshot_dir or pass --snapshot)")
	}
	snap, err := snapshot.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	return snap, cfg, nil
}

func openStore() (*state.Store, error) {
	path, err := config.StatePath()
	if err != nil {
		return nil, err
	}
	return state.Open(path)
}

func newInboxCmd(snapshotDir *string) *cobra.Command {
	var (
		source string
		tab    string
		focus  string
		search string
	)
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Show the triage inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, cfg, err := loadSnapshot(*snapshotDir)
			if err != nil {
				return err
			}

			store, err := openStore()
			var dismissed map[string]bool
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: state store unavailable: %v\n", err)
				dismissed = map[string]bool{}
			} else {
				defer store.Close()
				dismissed = state.DismissedOrEmpty(store, cfg.UserID)
			}

			now := time.Now()
			items := triage.BuildInboxItems(snap, now)
			counts := triage.CountsByTab(items, dismissed)

			if focus == "" {
				focus = cfg.FocusKey
			}
			result := triage.Filter(items, triage.FilterOptions{
				Source:    triage.SourceFilter(source),
				Tab:       triage.Tab(tab),
				Dismissed: dismissed,
				FocusKey:  focus,
				Search:    search,
			})
			triage.Sort(result.Items, triage.Tab(tab))

			if jsonOutput {
				printJSON(map[string]any{
					"items":          result.Items,
					"unfocusedCount": result.UnfocusedCount,
					"counts":         counts,
				})
				return nil
			}

			fmt.Printf("Inbox  ")
			for _, t := range triage.Tabs {
				badge := fmt.Sprintf("%s:%d", t, counts[t])
				if string(t) == tab {
					color.New(color.Bold).Printf("[%s] ", badge)
				} else {
					fmt.Printf("%s ", badge)
				}
			}
			fmt.Println()
			for _, item := range result.Items {
				statusColor(item.Status).Printf("%-7s", item.Status)
				fmt.Printf(" %s", item.Title)
				if item.Subtitle != "" {
					fmt.Printf(" — %s", item.Subtitle)
				}
				if item.TaskOpenCount > 0 {
					fmt.Printf(" (%d offene Aufgaben)", item.TaskOpenCount)
				}
				fmt.Println()
			}
			if result.UnfocusedCount > 0 {
				fmt.Printf("(%d items hidden by focus)\n", result.UnfocusedCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "all", "Source filter: all, calls, space")
	cmd.Flags().StringVar(&tab, "tab", "action", "Tab: action, pending, failed, info")
	cmd.Flags().StringVar(&focus, "focus", "", "Focus on a single contact key")
	cmd.Flags().StringVar(&search, "search", "", "Free-text search")
	return cmd
}

func newContactsCmd(snapshotDir *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Show ranked contact rollups",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, _, err := loadSnapshot(*snapshotDir)
			if err != nil {
				return err
			}
			insights := insight.Build(snap, time.Now())
			insight.Rank(insights)
			if limit > 0 && len(insights) > limit {
				insights = insights[:limit]
			}

			if jsonOutput {
				printJSON(insights)
				return nil
			}
			for _, in := range insights {
				fmt.Printf("%-40s", in.Ref.Label)
				if in.FailedCount > 0 {
					failedColor.Printf(" %d failed", in.FailedCount)
				}
				if in.OpenTasks > 0 {
					actionColor.Printf(" %d offen", in.OpenTasks)
				}
				if in.PendingCount > 0 {
					pendingColor.Printf(" %d pending", in.PendingCount)
				}
				if in.LastActivityAt != nil {
					fmt.Printf("  zuletzt %s", in.LastActivityAt.Format("02.01. 15:04"))
				}
				if in.LastNextStep != "" {
					fmt.Printf("  → %s", in.LastNextStep)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit number of contacts")
	return cmd
}

func newTodayCmd(snapshotDir *string) *cobra.Command {
	var (
		at    string
		focus string
	)
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show the day timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, cfg, err := loadSnapshot(*snapshotDir)
			if err != nil {
				return err
			}
			ref, err := parseRef(at)
			if err != nil {
				return err
			}
			if focus == "" {
				focus = cfg.FocusKey
			}
			result := timeline.BuildToday(snap, ref, focus)

			if jsonOutput {
				printJSON(result)
				return nil
			}
			fmt.Printf("Heute, %s\n", ref.Format("2006-01-02"))
			for _, item := range result.Timed {
				fmt.Printf("  %s ", item.At.Format("15:04"))
				statusColor(item.Status).Printf("%-7s", item.Status)
				fmt.Printf(" [%s] %s", item.Priority, item.Title)
				if item.Subtitle != "" {
					fmt.Printf(" — %s", item.Subtitle)
				}
				fmt.Println()
			}
			if len(result.Untimed) > 0 {
				fmt.Println("Ohne Uhrzeit:")
				for _, item := range result.Untimed {
					fmt.Printf("  ")
					statusColor(item.Status).Printf("%-7s", item.Status)
					fmt.Printf(" [%s] %s", item.Priority, item.Title)
					if item.Meta["overdue"] == "true" {
						failedColor.Printf(" überfällig")
					}
					fmt.Println()
				}
			}
			if result.UnassignedCount > 0 {
				fmt.Printf("(%d items hidden by focus)\n", result.UnassignedCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Reference instant (RFC3339 or YYYY-MM-DD), default now")
	cmd.Flags().StringVar(&focus, "focus", "", "Focus on a single contact key")
	return cmd
}

func newWeekCmd(snapshotDir *string) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the 7-day strip",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, _, err := loadSnapshot(*snapshotDir)
			if err != nil {
				return err
			}
			ref, err := parseRef(at)
			if err != nil {
				return err
			}
			strip := timeline.BuildWeekStrip(snap, ref)
			if jsonOutput {
				printJSON(strip)
				return nil
			}
			printStrip(strip)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Reference instant (RFC3339 or YYYY-MM-DD), default now")
	return cmd
}

func newDismissCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "dismiss [sourceType] [sourceId]",
		Short: "Dismiss an info item (or clear all dismissals)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if clear {
				if err := store.ClearDismissed(cfg.UserID); err != nil {
					return err
				}
				fmt.Println("Dismissed set cleared")
				return nil
			}
			if len(args) != 2 {
				return fmt.Errorf("usage: attend dismiss <sourceType> <sourceId>")
			}
			id := classify.SourceKey(args[0], args[1])
			if err := store.Dismiss(cfg.UserID, id); err != nil {
				return err
			}
			fmt.Printf("Dismissed %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the entire dismissed set")
	return cmd
}

func newTasksCmd(snapshotDir *string) *cobra.Command {
	var limit int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create follow-up tasks for action items without open tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, cfg, err := loadSnapshot(*snapshotDir)
			if err != nil {
				return err
			}
			items := triage.BuildInboxItems(snap, time.Now())

			var candidates []taskapi.Candidate
			for _, item := range items {
				if item.Status != classify.StatusAction || item.TaskOpenCount > 0 {
					continue
				}
				title := item.NextStep
				if title == "" {
					title = item.Title
				}
				candidates = append(candidates, taskapi.Candidate{
					Title:      title,
					SourceType: item.SourceType,
					SourceID:   item.SourceID,
				})
			}

			client := &taskapi.Client{
				BaseURL: cfg.TaskAPI.BaseURL,
				Token:   cfg.TaskAPI.Token,
			}
			if limit <= 0 {
				limit = cfg.TaskAPI.BatchLimit
			}
			result := client.CreateBatch(cmd.Context(), candidates, limit)

			if jsonOutput {
				printJSON(result)
				return nil
			}
			fmt.Printf("Created %d, skipped %d, failed %d (run %s)\n",
				result.Created, result.Skipped, result.Failed, result.RunID)
			for _, line := range result.Errors {
				fmt.Fprintf(os.Stderr, "  %s\n", line)
			}
			return nil
		},
	}
	create.Flags().IntVar(&limit, "limit", 0, "Batch cap (default from config)")

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task actions",
	}
	cmd.AddCommand(create)
	return cmd
}

func newWatchCmd(snapshotDir *string) *cobra.Command {
	var debounceSec int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the snapshot directory and reprint the week strip on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir := cfg.SnapshotDir
			if *snapshotDir != "" {
				dir = *snapshotDir
			}
			if dir == "" {
				return fmt.Errorf("no snapshot directory configured (set snapshot_dir or pass --snapshot)")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Watching %s (debounce: %ds). Press Ctrl+C to stop.\n", dir, debounceSec)
			return live.Watch(ctx, dir, time.Duration(debounceSec)*time.Second, func() {
				snap, err := snapshot.Load(dir)
				if err != nil {
					fmt.Fprintf(os.Stderr, "[%s] load error: %v\n", time.Now().Format("15:04:05"), err)
					return
				}
				fmt.Printf("[%s]\n", time.Now().Format("15:04:05"))
				printStrip(timeline.BuildWeekStrip(snap, time.Now()))
			})
		},
	}
	cmd.Flags().IntVar(&debounceSec, "debounce", 2, "Debounce in seconds")
	return cmd
}

func printStrip(strip []timeline.DayStrip) {
	for _, day := range strip {
		fmt.Printf("%s  ", day.Date)
		if !day.HasAny {
			fmt.Println("—")
			continue
		}
		if day.Events > 0 {
			fmt.Printf("%d Termine ", day.Events)
		}
		if day.Actions > 0 {
			actionColor.Printf("%d action ", day.Actions)
		}
		if day.Pending > 0 {
			pendingColor.Printf("%d pending ", day.Pending)
		}
		if day.Failed > 0 {
			failedColor.Printf("%d failed ", day.Failed)
		}
		fmt.Println()
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

func parseRef(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	if ts, err := time.Parse(time.RFC3339, at); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation("2006-01-02", at, time.Local); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid reference time %q (use RFC3339 or YYYY-MM-DD)", at)
}

func statusColor(s classify.Status) *color.Color {
	switch s {
	case classify.StatusFailed:
		return failedColor
	case classify.StatusPending:
		return pendingColor
	case classify.StatusAction:
		return actionColor
	case classify.StatusDone:
		return doneColor
	}
	return infoColor
}
