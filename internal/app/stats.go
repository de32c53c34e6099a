package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinktwice-app/thinktwice/internal/output"
	"github.com/thinktwice-app/thinktwice/internal/store"
)

var (
	statsDays int

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics from follow-up responses",
		Long: `Show per-app usage statistics built from follow-up responses.

Each time a restricted-app session ends and you answer the follow-up
prompt, the session's duration and your answer are recorded. This command
aggregates those records over the chosen window.`,
		Example: `  # Last 7 days (default)
  thinktwice stats

  # Last 30 days
  thinktwice stats --days 30`,
		RunE: runStats,
	}
)

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "window of days to aggregate")
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsDays <= 0 {
		return fmt.Errorf("--days must be positive, got %d", statsDays)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	since := time.Now().Add(-time.Duration(statsDays) * 24 * time.Hour)
	responses, err := db.ListFollowupsSince(since)
	if err != nil {
		return fmt.Errorf("failed to load follow-up responses: %w", err)
	}

	stats := aggregateStats(db, responses)

	fmt.Printf("Usage over the last %d days:\n\n", statsDays)
	fmt.Print(output.RenderStatsTable(stats))
	return nil
}

// aggregateStats groups follow-up responses by restricted app. Responses
// whose app has since been removed are skipped.
func aggregateStats(db *store.Store, responses []*store.FollowupResponse) []output.AppStats {
	byApp := make(map[int64]*output.AppStats)
	var order []int64

	for _, r := range responses {
		s, ok := byApp[r.RestrictedAppID]
		if !ok {
			app, err := db.GetAppByID(r.RestrictedAppID)
			if err != nil {
				continue
			}
			s = &output.AppStats{PackageName: app.PackageName}
			byApp[r.RestrictedAppID] = s
			order = append(order, r.RestrictedAppID)
		}

		s.Sessions++
		s.TotalSeconds += r.DurationSeconds
		switch r.Response {
		case store.ResponseClosedApp:
			s.ClosedCount++
		case store.ResponseKeptUsing:
			s.KeptCount++
		}
	}

	stats := make([]output.AppStats, 0, len(order))
	for _, id := range order {
		stats = append(stats, *byApp[id])
	}
	return stats
}
