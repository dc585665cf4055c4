package naivebayes

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"ledger-ner/internal/core/vectorizer"
)

const DefaultAlpha = 0.01

// UnseenClassLogPrior stands in for log(0) when a class has no training
// rows yet. It keeps the exported parameters finite and such a class can
// not win against any observed one.
var UnseenClassLogPrior = math.Log(math.SmallestNonzeroFloat64)

var (
	ErrNotInitialized = errors.New("classifier classes are not initialized")
	ErrUnknownClass   = errors.New("label is not in the classifier class set")
	ErrPredictOnly    = errors.New("classifier was restored from parameters and can not be trained")
	ErrNotFitted      = errors.New("classifier has not been fitted")
)

// MultinomialNB is a multinomial naive Bayes classifier trained
// incrementally with PartialFit. Column count is fixed by the first fit.
type MultinomialNB struct {
	alpha      float64
	classes    []string
	classIndex map[string]int
	nFeatures  int

	featureCount [][]float64
	classCount   []float64

	classLogPrior  []float64
	featureLogProb [][]float64

	predictOnly bool
}

func New(alpha float64) *MultinomialNB {
	return &MultinomialNB{alpha: alpha, nFeatures: -1}
}

// Initialize fixes the class set. It may only be called once.
func (nb *MultinomialNB) Initialize(classes []string) error {
	if nb.classes != nil {
		return fmt.Errorf("classifier classes are already initialized")
	}
	if len(classes) == 0 {
		return fmt.Errorf("class set is empty")
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, ok := index[c]; ok {
			return fmt.Errorf("duplicate class %q", c)
		}
		index[c] = i
	}
	nb.classes = slices.Clone(classes)
	nb.classIndex = index
	nb.classCount = make([]float64, len(classes))
	return nil
}

// PartialFit adds the rows of X with labels y to the counts and refreshes
// the log probabilities. Nothing is modified when an error is returned.
func (nb *MultinomialNB) PartialFit(X *vectorizer.Matrix, y []string) error {
	if nb.predictOnly {
		return ErrPredictOnly
	}
	if nb.classes == nil {
		return ErrNotInitialized
	}
	if X.NumRows != len(y) {
		return fmt.Errorf("row count %d does not match label count %d", X.NumRows, len(y))
	}
	if nb.nFeatures >= 0 && X.NumCols != nb.nFeatures {
		return fmt.Errorf("matrix has %d columns, classifier was fitted with %d", X.NumCols, nb.nFeatures)
	}

	labels := make([]int, len(y))
	for i, label := range y {
		c, ok := nb.classIndex[label]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownClass, label)
		}
		labels[i] = c
	}

	if nb.nFeatures < 0 {
		nb.nFeatures = X.NumCols
		nb.featureCount = make([][]float64, len(nb.classes))
		for c := range nb.featureCount {
			nb.featureCount[c] = make([]float64, nb.nFeatures)
		}
	}

	for i, c := range labels {
		nb.classCount[c]++
		indices, data := X.Row(i)
		counts := nb.featureCount[c]
		for k, j := range indices {
			counts[j] += data[k]
		}
	}

	nb.updateLogProbs()
	return nil
}

func (nb *MultinomialNB) updateLogProbs() {
	var total float64
	for _, n := range nb.classCount {
		total += n
	}

	nb.classLogPrior = make([]float64, len(nb.classes))
	for c, n := range nb.classCount {
		if n == 0 {
			nb.classLogPrior[c] = UnseenClassLogPrior
		} else {
			nb.classLogPrior[c] = math.Log(n) - math.Log(total)
		}
	}

	smoothing := nb.alpha * float64(nb.nFeatures)
	nb.featureLogProb = make([][]float64, len(nb.classes))
	for c, counts := range nb.featureCount {
		var sum float64
		for _, n := range counts {
			sum += n
		}
		denom := math.Log(sum + smoothing)

		row := make([]float64, nb.nFeatures)
		for j, n := range counts {
			row[j] = math.Log(n+nb.alpha) - denom
		}
		nb.featureLogProb[c] = row
	}
}

// FromParameters restores a predict-only classifier from exported
// parameters.
func FromParameters(classes []string, classLogPrior []float64, featureLogProb [][]float64) (*MultinomialNB, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("class set is empty")
	}
	if len(classLogPrior) != len(classes) || len(featureLogProb) != len(classes) {
		return nil, fmt.Errorf("parameter shapes do not match %d classes", len(classes))
	}
	nFeatures := len(featureLogProb[0])
	for c, row := range featureLogProb {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("feature_log_prob row %d has %d columns, expected %d", c, len(row), nFeatures)
		}
	}

	nb := New(0)
	if err := nb.Initialize(classes); err != nil {
		return nil, err
	}
	nb.nFeatures = nFeatures
	nb.classLogPrior = slices.Clone(classLogPrior)
	nb.featureLogProb = make([][]float64, len(featureLogProb))
	for c, row := range featureLogProb {
		nb.featureLogProb[c] = slices.Clone(row)
	}
	nb.predictOnly = true
	return nb, nil
}

func (nb *MultinomialNB) Initialized() bool {
	return nb.classes != nil
}

func (nb *MultinomialNB) Fitted() bool {
	return nb.featureLogProb != nil
}

// Predict returns the most likely class for every row of X. Ties go to the
// class listed first.
func (nb *MultinomialNB) Predict(X *vectorizer.Matrix) ([]string, error) {
	if !nb.Fitted() {
		return nil, ErrNotFitted
	}
	if X.NumCols != nb.nFeatures {
		return nil, fmt.Errorf("matrix has %d columns, classifier expects %d", X.NumCols, nb.nFeatures)
	}

	out := make([]string, X.NumRows)
	for i := range out {
		indices, data := X.Row(i)
		best, bestScore := 0, math.Inf(-1)
		for c := range nb.classes {
			score := nb.classLogPrior[c]
			flp := nb.featureLogProb[c]
			for k, j := range indices {
				score += data[k] * flp[j]
			}
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		out[i] = nb.classes[best]
	}
	return out, nil
}

func (nb *MultinomialNB) Classes() []string {
	return slices.Clone(nb.classes)
}

func (nb *MultinomialNB) NumFeatures() int {
	return max(nb.nFeatures, 0)
}

func (nb *MultinomialNB) ClassLogPrior() []float64 {
	return slices.Clone(nb.classLogPrior)
}

func (nb *MultinomialNB) FeatureLogProb() [][]float64 {
	out := make([][]float64, len(nb.featureLogProb))
	for c, row := range nb.featureLogProb {
		out[c] = slices.Clone(row)
	}
	return out
}
