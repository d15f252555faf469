package categorizer

import (
	"context"
	"math"
	"sort"

	"eou/internal/models"
)

// Request holds the user input and the candidates to choose from.
type Request struct {
	Input      string
	Candidates models.CandidateSet
	Threshold  float64
}

// Decision is the outcome of a path selection.
type Decision struct {
	Path   string
	Score  float64
	Ranked []models.CandidateScore
}

// PathCategorizer picks the candidate that best matches the input.
type PathCategorizer interface {
	Name() string
	Categorize(ctx context.Context, req Request) (Decision, error)
}

// Decide turns per-candidate scores, given in candidate order, into a
// decision. The first maximum wins ties; a score below threshold yields
// models.PathNone while still reporting the score.
func Decide(scores []models.CandidateScore, threshold float64) Decision {
	if len(scores) == 0 {
		return Decision{Path: models.PathNone}
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Score > scores[best].Score {
			best = i
		}
	}

	ranked := make([]models.CandidateScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	d := Decision{Path: models.PathNone, Score: scores[best].Score, Ranked: ranked}
	if d.Score >= threshold {
		d.Path = scores[best].Label
	}
	return d
}

// ClampScore maps a similarity or confidence onto [0, 1].
func ClampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// CosineSimilarity returns 0 when either vector has zero norm or the
// lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
