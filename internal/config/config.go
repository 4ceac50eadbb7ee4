// Package config loads the simulation's configuration knobs (spec
// section 6) via viper, the way Hintro/config does: SetDefault calls
// followed by a typed Config the rest of the program consumes.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"transitsim/internal/apperrors"
)

// PassengerGenerationMethod selects how demand is produced.
type PassengerGenerationMethod string

const (
	GenerationTest     PassengerGenerationMethod = "test"
	GenerationODMatrix PassengerGenerationMethod = "od_matrix"
)

// OptimizerType selects which optimizer capability the engine invokes.
type OptimizerType string

const (
	OptimizerDummy          OptimizerType = "dummy"
	OptimizerGreedyInsertion OptimizerType = "greedy_insertion"
)

// Config holds every knob named in spec.md section 6.
type Config struct {
	SimulationDate      string
	SimulationStartTime string
	SimulationEndTime   string

	NumBuses    int
	BusCapacity int

	NumMinibuses            int
	MinibusCapacity         int
	MinibusInitialLocations []string

	OptimizationInterval time.Duration
	PassengerMaxWaitTime time.Duration

	PassengerGenerationMethod PassengerGenerationMethod
	OptimizerType             OptimizerType

	StationsFile          string
	TravelTimeMatrixFile  string
	MatrixMetadataFile    string
	ODMatrixFile          string
	ODMatrixMetadataFile  string
	BusScheduleFile       string

	OutputDir string

	Seed int64

	LogLevel    string
	Environment string
}

// Load reads configuration from the given file path (if non-empty) and
// the environment, applying the teacher-pack defaults, then validates
// it. A missing optional file is not an error; Load only fails closed
// on structurally invalid values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("transitsim")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	v.SetDefault("simulation_date", time.Now().Format("2006-01-02"))
	v.SetDefault("simulation_start_time", "06:00:00")
	v.SetDefault("simulation_end_time", "22:00:00")
	v.SetDefault("num_buses", 0)
	v.SetDefault("bus_capacity", 70)
	v.SetDefault("num_minibuses", 4)
	v.SetDefault("minibus_capacity", 14)
	v.SetDefault("minibus_initial_locations", []string{})
	v.SetDefault("optimization_interval_seconds", 120)
	v.SetDefault("passenger_max_wait_time_seconds", 900)
	v.SetDefault("passenger_generation_method", string(GenerationTest))
	v.SetDefault("optimizer_type", string(OptimizerGreedyInsertion))
	v.SetDefault("stations_file", "")
	v.SetDefault("travel_time_matrix_file", "")
	v.SetDefault("matrix_metadata_file", "")
	v.SetDefault("od_matrix_file", "")
	v.SetDefault("od_matrix_metadata_file", "")
	v.SetDefault("bus_schedule_file", "")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("seed", int64(1))
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, apperrors.Wrap(err, apperrors.KindConfig, "reading configuration file")
		}
	}

	cfg := &Config{
		SimulationDate:            v.GetString("simulation_date"),
		SimulationStartTime:       v.GetString("simulation_start_time"),
		SimulationEndTime:         v.GetString("simulation_end_time"),
		NumBuses:                  v.GetInt("num_buses"),
		BusCapacity:               v.GetInt("bus_capacity"),
		NumMinibuses:              v.GetInt("num_minibuses"),
		MinibusCapacity:           v.GetInt("minibus_capacity"),
		MinibusInitialLocations:   v.GetStringSlice("minibus_initial_locations"),
		OptimizationInterval:      time.Duration(v.GetInt("optimization_interval_seconds")) * time.Second,
		PassengerMaxWaitTime:      time.Duration(v.GetInt("passenger_max_wait_time_seconds")) * time.Second,
		PassengerGenerationMethod: PassengerGenerationMethod(v.GetString("passenger_generation_method")),
		OptimizerType:             OptimizerType(v.GetString("optimizer_type")),
		StationsFile:              v.GetString("stations_file"),
		TravelTimeMatrixFile:      v.GetString("travel_time_matrix_file"),
		MatrixMetadataFile:        v.GetString("matrix_metadata_file"),
		ODMatrixFile:              v.GetString("od_matrix_file"),
		ODMatrixMetadataFile:      v.GetString("od_matrix_metadata_file"),
		BusScheduleFile:           v.GetString("bus_schedule_file"),
		OutputDir:                 v.GetString("output_dir"),
		Seed:                      v.GetInt64("seed"),
		LogLevel:                  v.GetString("log_level"),
		Environment:               v.GetString("environment"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold before the engine starts.
func (c *Config) Validate() error {
	if c.NumMinibuses < 0 || c.NumBuses < 0 {
		return apperrors.New(apperrors.KindConfig, "vehicle counts must be non-negative")
	}
	if c.MinibusCapacity <= 0 && c.NumMinibuses > 0 {
		return apperrors.New(apperrors.KindConfig, "minibus_capacity must be positive when minibuses are configured")
	}
	if c.BusCapacity <= 0 && c.NumBuses > 0 {
		return apperrors.New(apperrors.KindConfig, "bus_capacity must be positive when buses are configured")
	}
	if c.OptimizationInterval <= 0 {
		return apperrors.New(apperrors.KindConfig, "optimization_interval_seconds must be positive")
	}
	if c.PassengerMaxWaitTime <= 0 {
		return apperrors.New(apperrors.KindConfig, "passenger_max_wait_time_seconds must be positive")
	}
	switch c.PassengerGenerationMethod {
	case GenerationTest, GenerationODMatrix:
	default:
		return apperrors.New(apperrors.KindConfig, fmt.Sprintf("unknown passenger_generation_method %q", c.PassengerGenerationMethod))
	}
	switch c.OptimizerType {
	case OptimizerDummy, OptimizerGreedyInsertion:
	default:
		return apperrors.New(apperrors.KindConfig, fmt.Sprintf("unknown optimizer_type %q", c.OptimizerType))
	}
	if c.NumMinibuses > 0 && len(c.MinibusInitialLocations) != 0 && len(c.MinibusInitialLocations) != c.NumMinibuses {
		return apperrors.New(apperrors.KindConfig, "minibus_initial_locations must match num_minibuses when provided")
	}
	return nil
}

// HorizonSeconds parses SimulationStartTime/EndTime into a (start, end)
// offset pair in seconds-since-midnight, matching the time domain the
// oracle and engine operate in.
func (c *Config) HorizonSeconds() (start, end int, err error) {
	start, err = parseClock(c.SimulationStartTime)
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.KindConfig, "invalid simulation_start_time")
	}
	end, err = parseClock(c.SimulationEndTime)
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.KindConfig, "invalid simulation_end_time")
	}
	if end <= start {
		return 0, 0, apperrors.New(apperrors.KindConfig, "simulation_end_time must be after simulation_start_time")
	}
	return start, end, nil
}

func parseClock(s string) (int, error) {
	var h, m, sec int
	n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if err != nil || n != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS, got %q", s)
	}
	return h*3600 + m*60 + sec, nil
}
