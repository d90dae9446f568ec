package llm

// CharsPerToken is the divisor of the length-based token estimate. The
// estimate is an approximation for display and budgeting, not billed usage.
const CharsPerToken = 4

// EstimateTokens approximates the token count of texts by total byte length.
func EstimateTokens(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += len(t)
	}
	return n / CharsPerToken
}
