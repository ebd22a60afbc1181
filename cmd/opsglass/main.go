package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/stellenberg/opsglass/internal/datasource"
	"github.com/stellenberg/opsglass/pkg/config"
	"github.com/stellenberg/opsglass/pkg/export"
	"github.com/stellenberg/opsglass/pkg/model"
	"github.com/stellenberg/opsglass/pkg/ui"
	"github.com/stellenberg/opsglass/pkg/version"
	"github.com/stellenberg/opsglass/pkg/watcher"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: XDG config dir)")
	endpoint := flag.String("endpoint", "", "Metrics API base URL (e.g. http://127.0.0.1:8000)")
	fixture := flag.String("fixture", "", "Local JSON fixture with panel data and records")
	snapshotDB := flag.String("snapshot-db", "", "Local SQLite snapshot database")
	watchFlag := flag.Bool("watch", false, "Reload the fixture when it changes on disk")
	exportPanel := flag.String("export-panel", "", "Headless: export one panel's chart and exit (e.g. leftTop)")
	exportOut := flag.String("export-out", "", "Output path for --export-panel (svg or png)")
	exportRecords := flag.String("export-records", "", "Headless: export drill-down records as CSV to this path and exit")
	location := flag.String("location", "", "Record filter for --export-records: location substring")
	month := flag.String("month", "", "Record filter for --export-records: exact month")
	year := flag.String("year", "", "Record filter for --export-records: exact year")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *help {
		fmt.Println("Usage: opsglass [options]")
		fmt.Println("\nA terminal dashboard for operations metrics with drill-down into work records.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("opsglass %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file.
	if *endpoint != "" {
		cfg.Source.Endpoint = *endpoint
	}
	if *fixture != "" {
		cfg.Source.Fixture = *fixture
	}
	if *snapshotDB != "" {
		cfg.Source.SnapshotDB = *snapshotDB
	}
	if *watchFlag {
		cfg.Source.WatchFixture = true
	}

	src, err := openSource(cfg.Source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data source: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	if *exportPanel != "" || *exportRecords != "" {
		q := model.DrillDownQuery{Location: *location, Month: *month, Year: *year}
		if err := runHeadlessExport(src, *exportPanel, *exportOut, *exportRecords, q); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Autoclose runs drive the TUI under a captured PTY; skip the guard there.
	if !isTerminal() && os.Getenv("OPSGLASS_TUI_AUTOCLOSE_MS") == "" {
		fmt.Fprintln(os.Stderr, "Error: stdin is not a terminal; use --export-panel or --export-records for headless output")
		os.Exit(1)
	}

	var fw *watcher.Watcher
	if cfg.Source.WatchFixture && cfg.Source.Fixture != "" {
		w, werr := watcher.New(cfg.Source.Fixture,
			watcher.WithDebounceDuration(200*time.Millisecond),
		)
		if werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: fixture watch unavailable: %v\n", werr)
		} else if err := w.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: fixture watch unavailable: %v\n", err)
		} else {
			fw = w
		}
	}

	m := ui.NewModel(ui.Options{Config: cfg, Source: src, Watcher: fw})
	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(os.Stderr, "Error running opsglass: %v\n", err)
		os.Exit(1)
	}
}

// isTerminal checks if stdin is connected to a terminal. The dashboard
// needs a real terminal; piped invocations should use the headless
// export flags instead.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// openSource picks the data backend: endpoint, then fixture, then
// snapshot database. The HTTP backend is pinged so a dead endpoint fails
// fast instead of showing an empty dashboard.
func openSource(sc config.SourceConfig) (datasource.Source, error) {
	switch {
	case sc.Endpoint != "":
		src, err := datasource.NewHTTPSource(sc.Endpoint)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := src.Ping(ctx); err != nil {
			return nil, fmt.Errorf("endpoint %s unreachable: %w", sc.Endpoint, err)
		}
		return src, nil

	case sc.Fixture != "":
		return datasource.NewFixtureSource(sc.Fixture)

	case sc.SnapshotDB != "":
		return datasource.NewSQLiteSource(sc.SnapshotDB)

	default:
		return nil, fmt.Errorf("no data source configured: pass --endpoint, --fixture, or --snapshot-db, or set one in %s", config.ConfigPath())
	}
}

// runHeadlessExport renders export artifacts without starting the TUI.
func runHeadlessExport(src datasource.Source, panel, out, recordsOut string, q model.DrillDownQuery) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if panel != "" {
		if out == "" {
			out = panel + ".svg"
		}
		payload, err := src.FetchAggregate(ctx)
		if err != nil {
			return err
		}
		id := model.PanelIDFromKey(panel)
		rows := payload.Rows(id)
		if len(rows) == 0 {
			return fmt.Errorf("panel %q has no data (known panels: %v)", panel, model.KnownPanels)
		}
		series := make([]string, 0, 4)
		for i := range rows[0].Values {
			series = append(series, fmt.Sprintf("series %d", i+1))
		}
		if err := export.SaveChartSnapshot(export.ChartSnapshotOptions{
			Path:    out,
			Title:   "opsglass " + string(id),
			PanelID: id,
			Rows:    rows,
			Series:  series,
		}); err != nil {
			return err
		}
		fmt.Println("wrote", out)
	}

	if recordsOut != "" {
		result, err := src.QueryDrillDown(ctx, q)
		if err != nil {
			return err
		}
		if err := export.SaveRecordsCSV(recordsOut, result); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d records)\n", recordsOut, len(result.Records))
	}
	return nil
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set OPSGLASS_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("OPSGLASS_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
