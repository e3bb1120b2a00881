package evidence

import (
	"strings"
	"testing"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longDiagnosis = "Echocardiography diagnosis: calcific aortic stenosis with reduced valve area"

func unit(text, organ string, locs ...string) model.EvidenceUnit {
	u := model.EvidenceUnit{Text: text}
	if organ != "" {
		u.Organ = &model.Organ{Name: organ, Locations: locs}
	}
	return u
}

func newTestFilter() *Filter {
	return NewFilter(config.Default().Evidence)
}

func TestAssess_NoEvidence(t *testing.T) {
	a := newTestFilter().Assess(nil)

	assert.Equal(t, 0.0, a.TrustScore)
	assert.Equal(t, "no evidence", a.Rationale)
	assert.NotNil(t, a.FilteredUnits)
	assert.Empty(t, a.FilteredUnits)
}

func TestAssess_ConsistentOrgan(t *testing.T) {
	units := []model.EvidenceUnit{
		unit(longDiagnosis, "Heart (Cor)", "Aortic Valve"),
		unit(longDiagnosis, "Heart (Cor)", "Aortic Valve"),
		unit(longDiagnosis, "Heart (Cor)", "Left Ventricle (LV)"),
	}

	a := newTestFilter().Assess(units)

	assert.InDelta(t, 0.8, a.TrustScore, 1e-9)
	assert.Equal(t, model.TrustHigh, a.Tier)
	assert.False(t, a.ConflictDetected)
	assert.Len(t, a.FilteredUnits, 3)
	assert.Equal(t, "Heart (Cor)", a.DominantOrgan)
	assert.Equal(t, 2, a.DistinctLocations)
	assert.Contains(t, a.Rationale, "3 evidence units")
	assert.Contains(t, a.Rationale, "high quality")
	assert.Contains(t, a.Rationale, "no organ conflict")
}

func TestAssess_PluralityResolvesConflict(t *testing.T) {
	units := []model.EvidenceUnit{
		unit(longDiagnosis, "Heart (Cor)", "Aortic Valve"),
		unit(longDiagnosis, "Liver (Hepar)", "Right Lobe of Liver"),
		unit(longDiagnosis, "Heart (Cor)", "Mitral Valve"),
	}

	a := newTestFilter().Assess(units)

	assert.True(t, a.ConflictDetected)
	assert.InDelta(t, 0.4, a.TrustScore, 1e-9)
	assert.Equal(t, model.TrustMedium, a.Tier)
	require.Len(t, a.FilteredUnits, 2)
	for _, u := range a.FilteredUnits {
		assert.Equal(t, "Heart (Cor)", u.OrganName())
	}
	assert.Contains(t, a.Rationale, `resolved to "Heart (Cor)"`)
}

func TestAssess_TieGoesToFirstSeen(t *testing.T) {
	units := []model.EvidenceUnit{
		unit(longDiagnosis, "Pancreas", "Head of the Pancreas"),
		unit(longDiagnosis, "Liver (Hepar)", "Hepatic Artery"),
	}

	a := newTestFilter().Assess(units)

	assert.Equal(t, "Pancreas", a.DominantOrgan)
	require.Len(t, a.FilteredUnits, 1)
	assert.Equal(t, "Pancreas", a.FilteredUnits[0].OrganName())
}

func TestAssess_UnitsWithoutOrganDroppedOnConflict(t *testing.T) {
	units := []model.EvidenceUnit{
		unit("short", ""),
		unit(longDiagnosis, "Kidney (Ren)", "Renal Cortex"),
		unit(longDiagnosis, "Thyroid gland", "Isthmus of Thyroid"),
		unit(longDiagnosis, "Kidney (Ren)", "Renal Pelvis"),
	}

	a := newTestFilter().Assess(units)

	assert.Len(t, a.FilteredUnits, 2)
	assert.Equal(t, 2, a.DistinctOrgans)
}

func TestAssess_DiffuseEvidencePenalty(t *testing.T) {
	text := "Multifocal lesions visible across several cerebral regions on MRI"
	units := []model.EvidenceUnit{
		unit(text, "Brain", "Frontal Lobe", "Parietal Lobe", "Temporal Lobe"),
		unit(text, "Brain", "Occipital Lobe", "Pons", "Midbrain"),
	}

	a := newTestFilter().Assess(units)

	assert.Equal(t, 6, a.DistinctLocations)
	assert.InDelta(t, 0.5, a.TrustScore, 1e-9)
	assert.Equal(t, model.TrustMedium, a.Tier)
	assert.Len(t, a.FilteredUnits, 2)
	assert.Contains(t, a.Rationale, "diffuse evidence over 6 locations")
}

func TestAssess_ClampsAtZero(t *testing.T) {
	units := []model.EvidenceUnit{
		unit("x", "Heart"),
		unit("y", "Liver"),
	}

	a := newTestFilter().Assess(units)

	// 0.2 quality - 0.4 conflict penalty
	assert.Equal(t, 0.0, a.TrustScore)
	assert.Equal(t, model.TrustLow, a.Tier)
}

func TestAssess_QualityIncrements(t *testing.T) {
	f := newTestFilter()

	tests := []struct {
		name string
		unit model.EvidenceUnit
		want float64
	}{
		{"bare", unit("short text", ""), 0},
		{"long text only", unit(strings.Repeat("a", 31), ""), 0.3},
		{"thirty runes is not enough", unit(strings.Repeat("a", 30), ""), 0},
		{"organ without locations", unit("short", "Heart"), 0.2},
		{"organ with locations", unit("short", "Heart", "Pericardium"), 0.4},
		{"lexicon term", unit("Syndrome", ""), 0.1},
		{"multibyte text counted in runes", unit(strings.Repeat("心", 20), ""), 0},
		{"long multibyte text", unit(strings.Repeat("心", 31), ""), 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := f.Assess([]model.EvidenceUnit{tt.unit})
			assert.InDelta(t, tt.want, a.TrustScore, 1e-9)
		})
	}
}

func TestAssess_KeepAllPolicy(t *testing.T) {
	cfg := config.Default().Evidence
	cfg.ConflictPolicy = string(PolicyKeepAll)
	f := NewFilter(cfg)

	units := []model.EvidenceUnit{
		unit(longDiagnosis, "Heart (Cor)", "Aortic Valve"),
		unit(longDiagnosis, "Liver (Hepar)", "Hepatic Artery"),
	}

	a := f.Assess(units)

	assert.True(t, a.ConflictDetected)
	assert.Len(t, a.FilteredUnits, 2)
	assert.InDelta(t, 0.4, a.TrustScore, 1e-9)
	assert.Contains(t, a.Rationale, "all units kept")
}

func TestAssess_InjectedLexicon(t *testing.T) {
	cfg := config.Default().Evidence
	cfg.Lexicon = []string{"  Stenosis "}
	f := NewFilter(cfg)

	a := f.Assess([]model.EvidenceUnit{unit("mild stenosis", "")})
	assert.InDelta(t, 0.1, a.TrustScore, 1e-9)

	a = f.Assess([]model.EvidenceUnit{unit("a diagnosis", "")})
	assert.Equal(t, 0.0, a.TrustScore)
}
