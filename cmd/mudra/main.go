// Package main provides the CLI entrypoint for the Mudra gesture engine.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/event"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/imu"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

var (
	configPath  string
	dbPath      string
	serveAddr   string
	replayBatch int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mudra",
		Short:         "IMU gesture recognition engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to TOML config")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to gesture database (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	replayCmd := &cobra.Command{
		Use:   "replay <trace.csv>",
		Short: "Feed a recorded IMU trace through the engine",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().IntVar(&replayBatch, "batch", 10, "samples per feed call")

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Recompute acceptance thresholds from stored templates",
		RunE:  runCalibrate,
	}

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the stored library snapshot as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored library from a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	rootCmd.AddCommand(serveCmd, replayCmd, calibrateCmd, exportCmd, importCmd)
	return rootCmd
}

func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "mudra.toml"
	}
	return filepath.Join(homeDir, ".mudra", "config.toml")
}

// setup loads the config, opens the store, and builds an engine with
// the persisted library imported.
func setup() (config.FileConfig, *store.Store, *engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, err
	}

	path := dbPath
	if path == "" {
		path = cfg.DBPath()
	}
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil, nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir := filepath.Join(homeDir, ".mudra")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return cfg, nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path = filepath.Join(dir, "mudra.db")
	}

	st, err := store.New(path)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	eng := engine.New(cfg.EngineConfig())

	snap, err := st.LoadSnapshot()
	if err != nil {
		st.Close()
		return cfg, nil, nil, fmt.Errorf("failed to load library: %w", err)
	}
	if len(snap.Definitions) > 0 {
		if err := eng.ImportLibrary(snap); err != nil {
			st.Close()
			return cfg, nil, nil, fmt.Errorf("failed to import library: %w", err)
		}
		log.Printf("Loaded %d gestures from database", len(snap.Definitions))
	}

	return cfg, st, eng, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, st, eng, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := eng.Start(); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Engine: eng,
		Store:  st,
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr()
	}

	fmt.Printf("Starting server on %s\n", addr)
	return srv.ListenAndServe(addr)
}

func runReplay(cmd *cobra.Command, args []string) error {
	_, st, eng, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := imu.ReadCSV(f)
	if err != nil {
		return err
	}

	eng.Bus().Subscribe(event.TopicGesture, func(ev event.Event) {
		res, ok := ev.Payload.(gesture.Result)
		if !ok {
			return
		}
		fmt.Printf("%8dms  %-20s confidence=%.3f\n", res.TimestampMs, res.GestureName, res.Confidence)
	})
	eng.Bus().Subscribe(event.TopicActivityChanged, func(ev event.Event) {
		ctx, ok := ev.Payload.(imu.ActivityContext)
		if !ok {
			return
		}
		fmt.Printf("%8dms  activity=%s\n", ctx.TimestampMs, ctx.Level)
	})

	if err := eng.Start(); err != nil {
		return err
	}

	batch := replayBatch
	if batch < 1 {
		batch = 1
	}
	for i := 0; i < len(samples); i += batch {
		end := i + batch
		if end > len(samples) {
			end = len(samples)
		}
		if err := eng.FeedSamples(samples[i:end]); err != nil {
			return err
		}
	}

	d := eng.Diagnostics()
	fmt.Printf("Replayed %d samples: %d accepted, %d rejected\n",
		d.TotalSamplesProcessed, d.FPMetrics.TotalAccepted, d.FPMetrics.TotalRejected)
	return nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	_, st, eng, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	threshold, err := eng.Calibrate()
	if err != nil {
		return err
	}
	if threshold == 0 {
		fmt.Println("No gesture qualified for calibration (need >= 2 templates)")
		return nil
	}

	if err := st.SaveSnapshot(eng.ExportLibrary()); err != nil {
		return fmt.Errorf("failed to persist calibrated library: %w", err)
	}

	fmt.Printf("Calibration complete, last threshold %.4f\n", threshold)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	_, st, eng, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := json.MarshalIndent(eng.ExportLibrary(), "", "  ")
	if err != nil {
		return err
	}

	if len(args) == 0 {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(args[0], data, 0644)
}

func runImport(cmd *cobra.Command, args []string) error {
	_, st, eng, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var snap gesture.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}

	if err := eng.ImportLibrary(snap); err != nil {
		return err
	}
	if err := st.SaveSnapshot(eng.ExportLibrary()); err != nil {
		return fmt.Errorf("failed to persist library: %w", err)
	}

	fmt.Printf("Imported %d gestures\n", len(snap.Definitions))
	return nil
}
