package dedup

import (
	"math"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// similarity scores how likely two candidates describe the same real-world
// event, in [0,1]. Title overlap, geographic proximity, and temporal
// proximity contribute by the configured weights.
func (d *Deduper) similarity(a, b domain.Candidate) float64 {
	return d.opts.TitleWeight*tokenJaccard(a.TitleTokens, b.TitleTokens) +
		d.opts.GeoWeight*d.geoProximity(a, b) +
		d.opts.TimeWeight*d.timeProximity(a, b)
}

// tokenJaccard is set overlap over the normalized title token sets.
func tokenJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}
	shared := 0
	for _, tok := range b {
		if _, ok := set[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// fallbackRadiusFactor widens the merge radius when a location came from a
// country centroid. A centroid can sit hundreds of kilometers from the
// event it stands in for, so exact-radius comparison would never match it.
const fallbackRadiusFactor = 10

// fallbackGeoCeiling caps the proximity score when either side is a
// gazetteer fallback. A centroid standing in for an unknown position never
// corroborates location as strongly as two direct resolutions.
const fallbackGeoCeiling = 0.9

// geoProximity decays linearly from 1 at zero distance to 0 at the merge
// radius. A candidate without resolved coordinates cannot corroborate
// location and scores 0.
func (d *Deduper) geoProximity(a, b domain.Candidate) float64 {
	if a.Location.Precision == domain.PrecisionNone || b.Location.Precision == domain.PrecisionNone {
		return 0
	}

	radius := d.opts.MergeRadiusKM
	if a.Location.Precision == domain.PrecisionCountry || b.Location.Precision == domain.PrecisionCountry {
		radius *= fallbackRadiusFactor
	}

	dist := haversineKM(a.Location.Lat, a.Location.Lon, b.Location.Lat, b.Location.Lon)
	if dist >= radius {
		return 0
	}
	score := 1 - dist/radius
	if (a.Location.IsFallback || b.Location.IsFallback) && score > fallbackGeoCeiling {
		score = fallbackGeoCeiling
	}
	return score
}

// timeProximity decays linearly across the merge time window. When either
// timestamp is an ingest-time estimate it constrains the score less, since
// the true event time may be well before the fetch.
func (d *Deduper) timeProximity(a, b domain.Candidate) float64 {
	dt := a.Observed.Sub(b.Observed)
	if dt < 0 {
		dt = -dt
	}
	score := 1 - float64(dt)/float64(d.opts.MergeTimeWindow)
	if score < 0 {
		score = 0
	}
	if (a.TimeEstimated || b.TimeEstimated) && score < 0.5 {
		score = 0.5
	}
	return score
}

const earthRadiusKM = 6371

// haversineKM is the great-circle distance between two points.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
