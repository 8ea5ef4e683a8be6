// Package consensus merges answers from several providers into one.
package consensus

import (
	"fmt"
	"strings"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"gonum.org/v1/gonum/floats"
)

const (
	MethodError          = "error"
	MethodSingleResponse = "single_response"
	MethodDetailWeighted = "detail_weighted"

	singleResponseConfidence = 0.7
	dissentThreshold         = 0.3
	maxKeyPoints             = 5
	minKeyPointLength        = 20
)

// Generate synthesizes a consensus from the successful responses. Failed
// responses are ignored.
func Generate(responses []entities.ModelResponse) entities.Consensus {
	ok := make([]entities.ModelResponse, 0, len(responses))
	for _, r := range responses {
		if r.Success {
			ok = append(ok, r)
		}
	}

	switch len(ok) {
	case 0:
		return entities.Consensus{
			FinalResponse:   "All providers failed",
			KeyPoints:       []string{},
			DissentingViews: []string{},
			SynthesisMethod: MethodError,
		}
	case 1:
		return entities.Consensus{
			FinalResponse:   ok[0].Response,
			ConfidenceScore: singleResponseConfidence,
			AgreementLevel:  1.0,
			KeyPoints:       KeyPoints(ok),
			DissentingViews: []string{},
			SynthesisMethod: MethodSingleResponse,
		}
	}

	final := ok[0].Response
	for _, r := range ok[1:] {
		if len(r.Response) > 2*len(final) {
			final = r.Response
		}
	}

	agreement := Agreement(ok)
	dissent := []string{}
	if agreement < dissentThreshold {
		dissent = append(dissent, fmt.Sprintf("Low agreement (%.0f%%) between %d models; answers diverge significantly", agreement*100, len(ok)))
	}

	return entities.Consensus{
		FinalResponse:   final,
		ConfidenceScore: 0.8*agreement + 0.1,
		AgreementLevel:  agreement,
		KeyPoints:       KeyPoints(ok),
		DissentingViews: dissent,
		SynthesisMethod: MethodDetailWeighted,
	}
}

// Agreement is the mean pairwise Jaccard similarity of the responses.
func Agreement(responses []entities.ModelResponse) float64 {
	if len(responses) < 2 {
		return 1.0
	}
	var sims []float64
	for i := 0; i < len(responses); i++ {
		for j := i + 1; j < len(responses); j++ {
			sims = append(sims, Jaccard(responses[i].Response, responses[j].Response))
		}
	}
	return floats.Sum(sims) / float64(len(sims))
}

// Jaccard is |A∩B| / |A∪B| over the lower-cased word sets of a and b.
// Two empty texts are identical.
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// KeyPoints takes the first substantial sentence of each response, up to five.
func KeyPoints(responses []entities.ModelResponse) []string {
	points := []string{}
	for _, r := range responses {
		if len(points) == maxKeyPoints {
			break
		}
		if s := firstSentence(r.Response); len(s) > minKeyPointLength {
			points = append(points, s)
		}
	}
	return points
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
