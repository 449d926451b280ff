package mockdata

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"qcgallery/domain/inspection"
)

// ImagePrefix is the logical volume path fixture images live under
const ImagePrefix = "/Volumes/serverless_opm_catalog/opm/quality/images-highres/"

var (
	fixtureFactories = []string{
		"WUH-G426", "WUH-A79", "WUH-L42P",
		"YAN-YT01", "YAN-YT02",
		"NGB-NB10", "NGB-NB11",
		"SHA-SH01",
	}
	fixtureCameras      = []string{"CAM-01", "CAM-02"}
	fixtureDefectTypes  = []string{"weld_crack", "porosity", "undercut", "spatter", "incomplete_fusion", "burn_through", "misalignment"}
	fixtureModelVersion = []string{"v2.3.1", "v2.3.0", "v2.2.5"}
)

// InspectionGeneratorConfig configures the inspection fixture generator
type InspectionGeneratorConfig struct {
	Count     int
	KORate    float64
	Start     time.Time
	Span      time.Duration
	Photos    int
	Seed      int64
	Factories []string
}

// DefaultInspectionConfig returns a week of records at a 5% defect rate
func DefaultInspectionConfig() InspectionGeneratorConfig {
	return InspectionGeneratorConfig{
		Count:     500,
		KORate:    0.05,
		Start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Span:      7 * 24 * time.Hour,
		Photos:    10,
		Seed:      42,
		Factories: fixtureFactories,
	}
}

// InspectionGenerator produces deterministic inspection rows
type InspectionGenerator struct {
	config InspectionGeneratorConfig
	rng    *rand.Rand
}

// NewInspectionGenerator creates a new inspection generator
func NewInspectionGenerator(config InspectionGeneratorConfig) *InspectionGenerator {
	if len(config.Factories) == 0 {
		config.Factories = fixtureFactories
	}
	if config.Photos <= 0 {
		config.Photos = 10
	}
	return &InspectionGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns Count inspections. Timestamps are truncated to the minute
// so ties are common.
func (g *InspectionGenerator) Generate() []inspection.Inspection {
	out := make([]inspection.Inspection, 0, g.config.Count)
	for i := 0; i < g.config.Count; i++ {
		offset := time.Duration(g.rng.Int63n(int64(g.config.Span)))
		ts := g.config.Start.Add(offset).Truncate(time.Minute)

		ko := g.rng.Float64() < g.config.KORate
		rec := inspection.Inspection{
			InspectionID:    fmt.Sprintf("INSP-2025-%06d", i+1),
			FactoryID:       g.pick(g.config.Factories),
			CameraID:        g.pick(fixtureCameras),
			Timestamp:       ts,
			ImagePath:       fmt.Sprintf("%sphoto%d.jpg", ImagePrefix, i%g.config.Photos+1),
			Prediction:      inspection.PredictionOK,
			ConfidenceScore: g.score(0.92, 0.99),
			InferenceTimeMS: 45 + g.rng.Intn(136),
			ModelVersion:    g.pick(fixtureModelVersion),
			Date:            inspection.DayOf(ts),
		}
		if ko {
			defect := g.pick(fixtureDefectTypes)
			rec.Prediction = inspection.PredictionKO
			rec.DefectType = &defect
			rec.ConfidenceScore = g.score(0.75, 0.95)
		}
		out = append(out, rec)
	}
	return out
}

func (g *InspectionGenerator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

func (g *InspectionGenerator) score(lo, hi float64) float64 {
	v := lo + g.rng.Float64()*(hi-lo)
	return math.Round(v*10000) / 10000
}

// FactoriesFor builds factory reference rows for the given ids. The region is
// the id prefix before the first dash.
func FactoriesFor(ids ...string) []inspection.Factory {
	if len(ids) == 0 {
		ids = fixtureFactories
	}
	out := make([]inspection.Factory, 0, len(ids))
	for _, id := range ids {
		region, _, _ := strings.Cut(id, "-")
		out = append(out, inspection.Factory{
			FactoryID: id,
			Region:    region,
			Cameras:   append([]string(nil), fixtureCameras...),
		})
	}
	return out
}
