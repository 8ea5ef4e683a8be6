package council

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/marketconnect/llm-council/app/domain/entities"
)

const anonymousLabel = "Anonymous AI"

// BuildChairmanPrompt lists every response with its rank and asks for a synthesis.
func BuildChairmanPrompt(s *entities.CouncilSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the Chairman of an AI Council. Your task is to synthesize the following responses "+
		"from different AI models into a single, comprehensive answer.\n\nOriginal Question: %s\n\n", s.Query.UserQuery)
	if s.Query.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", s.Query.Context)
	}

	for i, r := range s.IndividualResponses {
		fmt.Fprintf(&b, "Response %d (Ranked #%d):\n%s\n\n", i+1, s.Rankings[r.ProviderID], r.Response)
	}

	b.WriteString("Based on these responses and their rankings, provide:\n" +
		"1. A comprehensive final answer that incorporates the best insights from all responses\n" +
		"2. Note any significant disagreements or areas of uncertainty\n" +
		"3. Provide your confidence level in the final answer\n\n" +
		"Final Answer:")
	return b.String()
}

// BuildReviewPrompt asks a member to score response on the 1-10 scales.
func BuildReviewPrompt(question string, response entities.LLMResponse, anonymize bool) string {
	label := response.ProviderName
	if anonymize || label == "" {
		label = anonymousLabel
	}
	return fmt.Sprintf("You are reviewing a response from %s to the following question:\n\n"+
		"Question: %s\n\n"+
		"Response to review:\n%s\n\n"+
		"Please rate this response on a scale of 1-10 for:\n"+
		"1. Accuracy: How factually correct is the response?\n"+
		"2. Insight: How insightful and helpful is the response?\n"+
		"3. Completeness: How thoroughly does it address the question?\n\n"+
		"Provide your ratings and brief feedback.",
		label, question, response.Response)
}

var scoreNumber = regexp.MustCompile(`^[^0-9\n]{0,12}?(\d+(?:\.\d+)?)`)

// ExtractScore finds the number following "<keyword> score", "<keyword>:" or
// "<keyword> quality" in text. It returns def when nothing in range 0..100 is found.
func ExtractScore(text, keyword string, def int) int {
	lower := strings.ToLower(text)
	kw := strings.ToLower(keyword)

	for _, pattern := range []string{kw + " score", kw + ":", kw + " quality"} {
		pos := strings.Index(lower, pattern)
		if pos < 0 {
			continue
		}
		m := scoreNumber.FindStringSubmatch(lower[pos+len(pattern):])
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 0 || v > 100 {
			continue
		}
		return int(v)
	}
	return def
}

// ParseReview turns a free-text review into scores clamped to 1..10.
func ParseReview(reviewerID, reviewedID, text string) entities.ResponseReview {
	return entities.ResponseReview{
		ReviewerID:         reviewerID,
		ReviewedResponseID: reviewedID,
		AccuracyScore:      clampScore(ExtractScore(text, "accuracy", 5)),
		InsightScore:       clampScore(ExtractScore(text, "insight", 5)),
		CompletenessScore:  clampScore(ExtractScore(text, "completeness", 5)),
		Feedback:           strings.TrimSpace(text),
	}
}

func clampScore(v int) int {
	return max(1, min(v, 10))
}
