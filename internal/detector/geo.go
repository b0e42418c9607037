package detector

import (
	"context"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// earthRadiusKM is the mean Earth radius used for great-circle math.
const earthRadiusKM = 6371.0

// GeoImpossibility flags transactions whose implied travel speed from
// the immediately preceding transaction exceeds a plausibility
// ceiling.
type GeoImpossibility struct {
	cfg domain.GeoConfig
}

// NewGeoImpossibility creates the geographic-impossibility detector.
func NewGeoImpossibility(cfg domain.DetectorConfig) *GeoImpossibility {
	return &GeoImpossibility{cfg: cfg.Geo}
}

func (d *GeoImpossibility) Name() string          { return domain.DetectorGeoImpossible }
func (d *GeoImpossibility) RequiresHistory() bool { return true }

// Analyze divides the great-circle distance to the previous
// transaction by the elapsed time. Absent when either side lacks a
// geolocation, or the elapsed time is not positive.
func (d *GeoImpossibility) Analyze(_ context.Context, tx *domain.Transaction, history *domain.ProfileSnapshot) (*domain.Finding, error) {
	if tx.Location == nil {
		return nil, nil
	}
	prev := history.Last()
	if prev == nil || prev.Location == nil {
		return nil, nil
	}

	elapsed := tx.Timestamp.Sub(prev.Timestamp)
	if elapsed <= 0 {
		return nil, nil
	}

	distKM := haversineKM(*prev.Location, *tx.Location)
	speedKMH := distKM / elapsed.Hours()

	evidence := map[string]any{
		"distance_km":   round2(distKM),
		"elapsed_sec":   int(elapsed / time.Second),
		"speed_kmh":     round2(speedKMH),
		"ceiling_kmh":   d.cfg.MaxSpeedKMH,
		"prev_tx_id":    prev.ID,
		"prev_location": *prev.Location,
	}

	if speedKMH <= d.cfg.MaxSpeedKMH {
		return clear(d.Name(), 0.95, evidence), nil
	}

	// Severity scales with how far over the ceiling the implied
	// speed is; ten times the ceiling saturates.
	overage := (speedKMH - d.cfg.MaxSpeedKMH) / d.cfg.MaxSpeedKMH
	severity := clamp01(0.3 + 0.7*math.Min(1, overage/9))

	return &domain.Finding{
		Detector:   d.Name(),
		Severity:   severity,
		Confidence: 0.95,
		ReasonCode: domain.ReasonImpossibleTravel,
		Evidence:   evidence,
	}, nil
}

// haversineKM computes the great-circle distance between two points.
func haversineKM(a, b domain.Geolocation) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
