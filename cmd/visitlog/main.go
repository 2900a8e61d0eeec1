// Command visitlog runs the visitation sync core: one-shot sync, a
// status report, or the background scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PastorRae/visitation-log/internal/config"
	"github.com/PastorRae/visitation-log/internal/crypto"
	"github.com/PastorRae/visitation-log/internal/db"
	"github.com/PastorRae/visitation-log/internal/kpi"
	"github.com/PastorRae/visitation-log/internal/logging"
	"github.com/PastorRae/visitation-log/internal/models"
	"github.com/PastorRae/visitation-log/internal/network"
	"github.com/PastorRae/visitation-log/internal/remote"
	syncpkg "github.com/PastorRae/visitation-log/internal/sync"
	"github.com/PastorRae/visitation-log/internal/sync/conflict"
	"github.com/PastorRae/visitation-log/internal/sync/progress"
	"github.com/PastorRae/visitation-log/internal/sync/queue"
	"github.com/PastorRae/visitation-log/internal/sync/scheduler"
)

func main() {
	runSync := flag.Bool("sync", false, "run one full sync and exit")
	showStatus := flag.Bool("status", false, "print pending counts and last sync time")
	flag.Parse()

	if err := run(*runSync, *showStatus); err != nil {
		fmt.Fprintf(os.Stderr, "visitlog: %v\n", err)
		os.Exit(1)
	}
}

func run(runSync, showStatus bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(os.Stderr, cfg.Logging.Level)

	database, err := db.Open(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()
	repo := db.NewRepository(database)
	defer repo.Close()

	if showStatus {
		return printStatus(os.Stdout, repo)
	}

	client := remote.NewClient(cfg.API)
	tokens := crypto.NewTokenStore(cfg.Storage.DataDir)
	if tok, ok, err := tokens.Load("api_token"); err == nil && ok {
		client.SetToken(tok, &remote.User{})
		if !client.EnsureFreshToken() {
			tokens.Delete("api_token")
		}
	}
	if !client.IsAuthenticated() {
		email := os.Getenv("PCP_EMAIL")
		password := os.Getenv("PCP_PASSWORD")
		if email != "" && password != "" {
			resp, err := client.Authenticate(context.Background(), remote.Credentials{
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			if err := tokens.Save("api_token", resp.Token); err != nil {
				logging.Warn("Could not persist API token", logging.Fields{
					"error": err.Error(),
				})
			}
		}
	}

	q, err := queue.New(repo)
	if err != nil {
		return err
	}

	engine := syncpkg.NewEngine(repo, client, q,
		conflict.NewResolver(cfg.Sync.ConflictStrategy),
		progress.NewReporter(), cfg.Sync.BatchSize)

	prober := network.NewHTTPProber(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
	monitor := network.NewMonitor(prober, cfg.Network.PollInterval,
		network.FallbackPolicy(cfg.Network.FallbackPolicy))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runSync {
		return runOnce(ctx, engine, q)
	}

	sched := scheduler.New(engine, monitor, q, cfg.Sync.Interval)
	monitor.Start(ctx)
	defer monitor.Stop()
	if cfg.Sync.AutoSync {
		sched.Start(ctx)
		defer sched.Stop()
	}

	<-ctx.Done()
	logging.Info("Shutting down", logging.Fields{})
	return nil
}

func runOnce(ctx context.Context, engine *syncpkg.Engine, q *queue.Queue) error {
	engine.Reporter().Register(func(u progress.Update) {
		fmt.Printf("[%3d%%] %-15s %s\n", u.Percent, u.Stage, u.Message)
	})

	if err := q.Drain(ctx); err != nil {
		logging.Warn("Queue drain before sync failed", logging.Fields{
			"error": err.Error(),
		})
	}

	result, err := engine.Sync(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\nsuccess:   %v\n", result.Success)
	fmt.Printf("visits:    %d synced\n", result.VisitsSynced)
	fmt.Printf("followups: %d synced\n", result.FollowupsSynced)
	fmt.Printf("churches:  %d downloaded\n", result.ChurchesDownloaded)
	fmt.Printf("members:   %d downloaded\n", result.MembersDownloaded)
	fmt.Printf("conflicts: %d resolved\n", len(result.Conflicts))
	fmt.Printf("duration:  %s\n", result.Duration.Round(time.Millisecond))
	for _, e := range result.Errors {
		fmt.Printf("error:     %s\n", e)
	}
	return nil
}

func printStatus(w io.Writer, repo *db.Repository) error {
	visits, err := repo.UnsyncedVisitCount()
	if err != nil {
		return err
	}
	followups, err := repo.UnsyncedFollowupCount()
	if err != nil {
		return err
	}
	overdue, err := repo.CountOverdueFollowups(models.NowMillis(), "")
	if err != nil {
		return err
	}
	lastSync, err := repo.GetLastSyncTimestamp()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "pending visits:    %d\n", visits)
	fmt.Fprintf(w, "pending followups: %d\n", followups)
	fmt.Fprintf(w, "overdue followups: %d\n", overdue)
	if lastSync == 0 {
		fmt.Fprintln(w, "last sync:         never")
	} else {
		fmt.Fprintf(w, "last sync:         %s\n", models.MillisToTime(lastSync).Format("2006-01-02 15:04:05"))
	}

	return printKpis(w, repo)
}

// printKpis lists each church dashboard with its threshold alerts.
func printKpis(w io.Writer, repo *db.Repository) error {
	churches, err := repo.GetAllChurches()
	if err != nil {
		return err
	}

	kpis := kpi.NewService(repo)
	for _, church := range churches {
		dash, err := repo.GetKpiByChurch(church.ID)
		if err != nil {
			return err
		}
		if dash == nil {
			continue
		}
		fmt.Fprintf(w, "\nkpi %s (%s)\n", church.Name, church.ID)
		fmt.Fprintf(w, "  community service hours: %d\n", dash.CommunityServiceHours)
		fmt.Fprintf(w, "  small groups:            %d\n", dash.SmallGroupsPerChurch)
		fmt.Fprintf(w, "  digital reach:           %d\n", dash.DigitalEvangelismReach)
		for _, alert := range kpis.CheckAlerts(dash) {
			fmt.Fprintf(w, "  alert: %s\n", alert)
		}
	}
	return nil
}
