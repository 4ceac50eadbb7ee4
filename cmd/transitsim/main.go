// Command transitsim drives the simulation engine from the command
// line, grounded on tidbyt-gtfs/cmd/main.go's cobra root command plus
// persistent-flag wiring, generalized from one static GTFS subcommand
// to a config-driven simulation `run`.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transitsim/internal/config"
	"transitsim/internal/demand"
	"transitsim/internal/engine"
	"transitsim/internal/loader"
	"transitsim/internal/logging"
	"transitsim/internal/network"
	"transitsim/internal/oracle"
	"transitsim/internal/report"
	"transitsim/internal/transit"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "transitsim",
	Short:        "Mixed urban transit discrete-event simulator",
	Long:         "Simulates a fixed-route bus network alongside an on-demand minibus fleet routed by a greedy-insertion optimizer.",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation from a config file",
	RunE:  runSimulation,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the simulation config file (YAML)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	net, err := buildNetwork(cfg)
	if err != nil {
		return err
	}

	buses, err := buildBuses(cfg)
	if err != nil {
		return err
	}

	minibuses, err := buildMinibuses(cfg, net)
	if err != nil {
		return err
	}

	start, end, err := cfg.HorizonSeconds()
	if err != nil {
		return err
	}
	horizonSeconds := float64(end - start)

	eng := engine.New(net, buses, minibuses, horizonSeconds, cfg.OptimizerType, cfg.OptimizationInterval.Seconds(), cfg.Seed, log)

	if err := eng.SeedBusSchedules(); err != nil {
		return err
	}
	if err := eng.SeedOptimizerCadence(0); err != nil {
		return err
	}

	appearances, err := buildDemand(cfg, net, horizonSeconds)
	if err != nil {
		return err
	}
	engineAppearances := make([]engine.PassengerAppearance, len(appearances))
	for i, a := range appearances {
		engineAppearances[i] = engine.PassengerAppearance{
			Origin:      a.Origin,
			Destination: a.Destination,
			AppearTime:  a.AppearTime,
			MaxWaitTime: a.MaxWaitTime,
		}
	}
	if err := eng.SeedDemand(engineAppearances); err != nil {
		return err
	}

	log.Infow("starting simulation", "horizon_seconds", horizonSeconds, "buses", len(buses), "minibuses", len(minibuses), "passengers", len(appearances))
	if err := eng.Run(); err != nil {
		return err
	}

	for _, violation := range eng.CheckInvariants() {
		log.WithError(violation).Warnw("invariant violation detected at end of run")
	}

	passengerPath, vehiclePath, err := report.WriteCSVReports(cfg.OutputDir, eng)
	if err != nil {
		return err
	}
	log.Infow("wrote reports", "passengers", passengerPath, "vehicles", vehiclePath)

	report.PrintConsole(report.BuildSummary(eng))
	return nil
}

func buildNetwork(cfg *config.Config) (*network.Network, error) {
	if cfg.StationsFile == "" {
		return nil, fmt.Errorf("stations_file is required")
	}
	stations, err := loader.LoadStations(cfg.StationsFile)
	if err != nil {
		return nil, err
	}
	if cfg.TravelTimeMatrixFile == "" || cfg.MatrixMetadataFile == "" {
		return nil, fmt.Errorf("travel_time_matrix_file and matrix_metadata_file are required")
	}
	matrix, err := loader.LoadTravelTimeMatrix(cfg.TravelTimeMatrixFile, cfg.MatrixMetadataFile)
	if err != nil {
		return nil, err
	}
	matrixOracle, err := oracle.NewMatrixOracle(matrix.N, matrix.Slots, matrix.SlotDurationSecs, matrix.Values)
	if err != nil {
		return nil, err
	}
	return network.New(stations, matrixOracle)
}

func buildBuses(cfg *config.Config) ([]*transit.Bus, error) {
	if cfg.NumBuses == 0 {
		return nil, nil
	}
	if cfg.BusScheduleFile == "" {
		return nil, fmt.Errorf("bus_schedule_file is required when num_buses > 0")
	}
	return loader.LoadBusSchedules(cfg.BusScheduleFile, cfg.BusCapacity)
}

func buildMinibuses(cfg *config.Config, net *network.Network) ([]*transit.Minibus, error) {
	minibuses := make([]*transit.Minibus, 0, cfg.NumMinibuses)
	for i := 0; i < cfg.NumMinibuses; i++ {
		startStation := net.All()[0].ID
		if i < len(cfg.MinibusInitialLocations) {
			startStation = cfg.MinibusInitialLocations[i]
		}
		mb, err := transit.NewMinibus(fmt.Sprintf("MINIBUS_%d", i+1), cfg.MinibusCapacity, startStation)
		if err != nil {
			return nil, err
		}
		minibuses = append(minibuses, mb)
	}
	return minibuses, nil
}

func buildDemand(cfg *config.Config, net *network.Network, horizonSeconds float64) ([]demand.Appearance, error) {
	maxWait := cfg.PassengerMaxWaitTime.Seconds()
	switch cfg.PassengerGenerationMethod {
	case config.GenerationTest:
		return demand.DeterministicTestSet(maxWait), nil
	case config.GenerationODMatrix:
		if cfg.ODMatrixFile == "" || cfg.ODMatrixMetadataFile == "" {
			return nil, fmt.Errorf("od_matrix_file and od_matrix_metadata_file are required for passenger_generation_method=od_matrix")
		}
		raw, err := loader.LoadODMatrix(cfg.ODMatrixFile, cfg.ODMatrixMetadataFile)
		if err != nil {
			return nil, err
		}
		m, err := demand.NewODMatrix(raw.StationIDs, raw.NumSlots, raw.SlotDurationSecs, raw.Values)
		if err != nil {
			return nil, err
		}
		gen := demand.NewGenerator(cfg.Seed, maxWait)
		return gen.GenerateFromODMatrix(m, 0, horizonSeconds), nil
	default:
		return nil, fmt.Errorf("unknown passenger_generation_method %q", cfg.PassengerGenerationMethod)
	}
}
