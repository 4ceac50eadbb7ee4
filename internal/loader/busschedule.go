package loader

import (
	"fmt"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"transitsim/internal/apperrors"
	"transitsim/internal/transit"
)

// busScheduleRow is one CSV row of spec.md section 6's bus schedule
// file: bus_id, route_name, stop_sequence, station_id, arrival_time.
type busScheduleRow struct {
	BusID        string `csv:"bus_id"`
	RouteName    string `csv:"route_name"`
	StopSequence int    `csv:"stop_sequence"`
	StationID    string `csv:"station_id"`
	ArrivalTime  string `csv:"arrival_time"`
}

// LoadBusSchedules reads the bus schedule CSV, groups rows by bus_id,
// sorts each group by stop_sequence, and constructs one transit.Bus per
// group with the given capacity.
func LoadBusSchedules(path string, capacity int) ([]*transit.Bus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDataLoad, "opening bus schedule file").WithDetail("path", path)
	}
	defer f.Close()

	var rows []*busScheduleRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDataLoad, "parsing bus schedule CSV")
	}

	grouped := make(map[string][]*busScheduleRow)
	var order []string
	for _, r := range rows {
		if _, ok := grouped[r.BusID]; !ok {
			order = append(order, r.BusID)
		}
		grouped[r.BusID] = append(grouped[r.BusID], r)
	}

	buses := make([]*transit.Bus, 0, len(order))
	for _, busID := range order {
		group := grouped[busID]
		sort.Slice(group, func(i, j int) bool { return group[i].StopSequence < group[j].StopSequence })

		schedule := make([]transit.ScheduleStop, 0, len(group))
		for _, r := range group {
			secs, err := parseClockSeconds(r.ArrivalTime)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindDataLoad, "parsing bus schedule arrival_time").
					WithDetail("bus_id", busID).WithDetail("arrival_time", r.ArrivalTime)
			}
			schedule = append(schedule, transit.ScheduleStop{StationID: r.StationID, ScheduledArrivalTime: secs})
		}

		bus, err := transit.NewBus(busID, capacity, schedule)
		if err != nil {
			return nil, err
		}
		buses = append(buses, bus)
	}
	return buses, nil
}

func parseClockSeconds(s string) (float64, error) {
	var h, m, sec int
	n, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	if err != nil || n != 3 {
		return 0, apperrors.New(apperrors.KindDataLoad, "expected HH:MM:SS clock value").WithDetail("value", s)
	}
	return float64(h*3600 + m*60 + sec), nil
}
