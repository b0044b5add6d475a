// Package sensor serves simulated farm sensor readings. Real ingestion is
// out of scope; the generator produces plausible greenhouse data so the
// dashboard has something to draw.
package sensor

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	tempMin, tempMax         = 18.0, 32.0
	humidityMin, humidityMax = 40.0, 85.0
	moistureMin, moistureMax = 30.0, 70.0
)

// Reading is one sensor sample.
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	SoilMoisture float64   `json:"soilMoisture"`
}

// Greenhouse identifies the simulated source.
type Greenhouse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// LatestReading is a Reading annotated with source metadata.
type LatestReading struct {
	Reading
	Status     string     `json:"status"`
	Greenhouse Greenhouse `json:"greenhouse"`
}

// FieldStats summarize one metric over a period.
type FieldStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Avg  float64 `json:"avg"`
	Unit string  `json:"unit"`
}

// Stats bundles per-metric statistics.
type Stats struct {
	Temperature  FieldStats `json:"temperature"`
	Humidity     FieldStats `json:"humidity"`
	SoilMoisture FieldStats `json:"soilMoisture"`
	Period       string     `json:"period"`
}

// Generator produces simulated readings as a bounded random walk, so
// consecutive samples trend rather than jump. Safe for concurrent use; one
// Generator serves all handlers.
type Generator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	now        func() time.Time
	greenhouse Greenhouse
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes the generator deterministic for tests.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithNow overrides the generator's time source.
func WithNow(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
		greenhouse: Greenhouse{
			ID:       "GH-001",
			Name:     "ShambaSecure Test Greenhouse",
			Location: "Nairobi, Kenya",
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Latest returns one current reading.
func (g *Generator) Latest() LatestReading {
	return LatestReading{
		Reading: Reading{
			Timestamp:    g.now().UTC(),
			Temperature:  round1(g.uniform(tempMin, tempMax)),
			Humidity:     round1(g.uniform(humidityMin, humidityMax)),
			SoilMoisture: round1(g.uniform(moistureMin, moistureMax)),
		},
		Status:     "active",
		Greenhouse: g.greenhouse,
	}
}

// History returns readings covering the given number of hours at the given
// interval, oldest first.
func (g *Generator) History(hours int, interval time.Duration) []Reading {
	if interval < time.Minute {
		interval = time.Hour
	}
	points := int(time.Duration(hours)*time.Hour/interval) + 1

	temp, humidity, moisture := 25.0, 65.0, 55.0
	end := g.now().UTC()

	readings := make([]Reading, 0, points)
	for i := 0; i < points; i++ {
		temp = clamp(temp+g.uniform(-1, 1), tempMin, tempMax)
		humidity = clamp(humidity+g.uniform(-2, 2), humidityMin, humidityMax)
		moisture = clamp(moisture+g.uniform(-1.5, 1.5), moistureMin, moistureMax)

		readings = append(readings, Reading{
			Timestamp:    end.Add(-time.Duration(points-i-1) * interval),
			Temperature:  round1(temp),
			Humidity:     round1(humidity),
			SoilMoisture: round1(moisture),
		})
	}
	return readings
}

// DayStats computes min/max/avg over the last 24 hours of simulated data.
func (g *Generator) DayStats() Stats {
	readings := g.History(24, time.Hour)

	var temp, humidity, moisture []float64
	for _, r := range readings {
		temp = append(temp, r.Temperature)
		humidity = append(humidity, r.Humidity)
		moisture = append(moisture, r.SoilMoisture)
	}

	return Stats{
		Temperature:  fieldStats(temp, "°C"),
		Humidity:     fieldStats(humidity, "%"),
		SoilMoisture: fieldStats(moisture, "%"),
		Period:       "24 hours",
	}
}

// ParseRange converts a range parameter like "24h", "7d" or "30d" into
// hours. Unparseable input falls back to 24 hours.
func ParseRange(s string) int {
	if len(s) < 2 {
		return 24
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 24
	}
	switch {
	case strings.HasSuffix(s, "h"):
		return n
	case strings.HasSuffix(s, "d"):
		return n * 24
	default:
		return 24
	}
}

// ParseInterval converts an interval parameter like "1h" or "30m" into a
// duration, defaulting to one hour.
func ParseInterval(s string) time.Duration {
	if len(s) < 2 {
		return time.Hour
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return time.Hour
	}
	switch {
	case strings.HasSuffix(s, "h"):
		return time.Duration(n) * time.Hour
	case strings.HasSuffix(s, "m"):
		return time.Duration(n) * time.Minute
	default:
		return time.Hour
	}
}

// uniform guards the rng; rand.Rand is not safe for concurrent use.
func (g *Generator) uniform(min, max float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + g.rng.Float64()*(max-min)
}

func fieldStats(values []float64, unit string) FieldStats {
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return FieldStats{
		Min:  round1(min),
		Max:  round1(max),
		Avg:  round1(sum / float64(len(values))),
		Unit: unit,
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
