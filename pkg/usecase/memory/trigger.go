package memory

import (
	"regexp"
	"strings"
)

// explicitKeywords are phrases where the user directly asks for
// something to be remembered.
var explicitKeywords = []string{
	"记住",
	"帮我记",
	"加入记忆",
	"牢记",
	"以后你都",
	"永远记",
	"保存到记忆",
}

// Implicit patterns catch personal facts worth keeping even without an
// explicit request.
var (
	identityPattern   = regexp.MustCompile(`(?:我叫|我是|我住在|我来自|我的职业是)(.+)`)
	preferencePattern = regexp.MustCompile(`(?i)(?:我喜欢|i like|我更喜欢|我希望你|以后请你|你以后回答我)(.+)`)
	goalPattern       = regexp.MustCompile(`(?:我想在未来|我接下来|我计划|我打算|我的目标是)(.+)`)
)

// ShouldSaveAsMemory reports whether text looks like something the user
// wants remembered, either by explicit request or by matching a
// personal-fact pattern. It is a cheap pre-filter; the final decision
// is made by the LLM classifier on flush.
func ShouldSaveAsMemory(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	for _, kw := range explicitKeywords {
		if strings.Contains(trimmed, kw) {
			return true
		}
	}

	return identityPattern.MatchString(trimmed) ||
		preferencePattern.MatchString(trimmed) ||
		goalPattern.MatchString(trimmed)
}
