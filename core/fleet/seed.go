package fleet

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/kilianp07/lampfleet/core/model"
)

const kmPerDegLat = 111.32

// Generate builds the dock and lamp geography from cfg. The result only
// depends on cfg and the state of rng.
func Generate(cfg Config, rng *rand.Rand) ([]*model.Dock, []*model.Lamp) {
	sc := cfg.Seed
	docks := make([]*model.Dock, 0, sc.DockCount)
	for i := 0; i < sc.DockCount; i++ {
		angle := 2*math.Pi*float64(i)/float64(sc.DockCount) + (rng.Float64()-0.5)*0.4
		dist := sc.RadiusKm * (0.45 + rng.Float64()*0.2)
		lat, lng := offset(sc.CenterLat, sc.CenterLng, dist, angle)
		docks = append(docks, &model.Dock{
			ID:                  fmt.Sprintf("dock-%d", i+1),
			Name:                fmt.Sprintf("Dock %d", i+1),
			Lat:                 lat,
			Lng:                 lng,
			RoofHeightM:         math.Round((18+rng.Float64()*14)*10) / 10,
			FullContainers:      sc.InitialFullContainers,
			IsOperational:       true,
			ContainerSwapStatus: model.SwapNotReplaced,
		})
	}

	lamps := make([]*model.Lamp, 0, sc.LampCount)
	for i := 0; i < sc.LampCount; i++ {
		dist := sc.RadiusKm * math.Sqrt(rng.Float64())
		lat, lng := offset(sc.CenterLat, sc.CenterLng, dist, rng.Float64()*2*math.Pi)
		lamps = append(lamps, &model.Lamp{
			ID:              fmt.Sprintf("lamp-%03d", i+1),
			Name:            fmt.Sprintf("Lamp %d", i+1),
			Lat:             lat,
			Lng:             lng,
			Status:          model.LampOK,
			PowerOn:         true,
			CassettePresent: true,
			EnergyW:         cfg.EnergyMinW + rng.Float64()*(cfg.EnergyMaxW-cfg.EnergyMinW),
		})
	}
	failures := min(sc.InitialFailures, len(lamps))
	for _, idx := range rng.Perm(len(lamps))[:failures] {
		fail(lamps[idx])
	}
	return docks, lamps
}

// offset moves distKm from the centre along bearing (radians, 0 = north).
func offset(lat, lng, distKm, bearing float64) (float64, float64) {
	dLat := distKm * math.Cos(bearing) / kmPerDegLat
	dLng := distKm * math.Sin(bearing) / (kmPerDegLat * math.Cos(lat*math.Pi/180))
	return lat + dLat, lng + dLng
}

func fail(l *model.Lamp) {
	l.Status = model.LampReplace
	l.PowerOn = false
	l.CassettePresent = false
	l.EnergyW = 0
}
