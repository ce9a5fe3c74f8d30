package pipeline

import "strings"

// ProblemType is a rough label for the recognized question, shown in the
// status line.
func ProblemType(text string) string {
	t := strings.ToLower(text)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(t, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("algorithm", "sort", "search"):
		return "Algorithmic Problem"
	case has("class", "object", "inheritance"):
		return "Object-Oriented Programming"
	case has("web", "http", "api"):
		return "Web Development"
	case has("data") && has("structure", "list"):
		return "Data Structures"
	case has("recursive", "recursion"):
		return "Recursive Problem"
	case has("dynamic") && has("programming"):
		return "Dynamic Programming"
	}
	return "General Programming"
}
