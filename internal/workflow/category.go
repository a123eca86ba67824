package workflow

import "strings"

// categoryKeywords lists, in match priority order, the keywords that suggest
// a service category. Used only to group tasks in execution-plan logging.
var categoryKeywords = []struct {
	name  string
	words []string
}{
	{"retrieval", []string{"fetch", "search", "lookup", "retrieve", "query", "find"}},
	{"analysis", []string{"analyze", "analyse", "evaluate", "assess", "compare", "score"}},
	{"synthesis", []string{"summarize", "summarise", "compose", "write", "draft", "generate"}},
	{"transform", []string{"convert", "translate", "format", "parse", "extract"}},
	{"planning", []string{"plan", "schedule", "book", "reserve", "arrange"}},
}

// InferCategory guesses a service category from a task description. Unknown
// descriptions fall into "general".
func InferCategory(description string) string {
	lower := strings.ToLower(description)
	for _, cat := range categoryKeywords {
		for _, w := range cat.words {
			if strings.Contains(lower, w) {
				return cat.name
			}
		}
	}
	return "general"
}
