package stats

import (
	"slices"
	"strings"

	"github.com/h1bexplorer/internal/database"
	"github.com/h1bexplorer/internal/storage"
)

// Career categories
const (
	CareerAIML         = "AI/ML Engineers"
	CareerSoftware     = "Software Developers"
	CareerAIDevelopers = "AI Developers"
)

// Occupations involved in career classification
const (
	SOCSoftwareDevelopers = "Software Developers"
	SOCDataScientists     = "Data Scientists"
	SOCResearchScientists = "Computer and Information Research Scientists"
)

// AIMLTitleKeywords match lowercased raw job titles of AI and ML roles
var AIMLTitleKeywords = []string{
	"machine learning", "artificial intelligence", "deep learning", "computer vision",
	"natural language", "nlp", "neural", "llm", "large language model", "generative ai", "genai",
	"ai engineer", "ml engineer", "ai/ml", "ai-ml", "ai ml", "mlops",
	"ai scientist", "ml scientist", "ai researcher", "ml researcher",
	"ai developer", "ml developer", "ai specialist", "ml specialist",
	"ai platform", "ml platform", "ai infrastructure", "ml infrastructure",
	"tensorflow", "pytorch", "robotics", "perception", "autonomous", "self-driving",
	"recommendation", "conversational ai", "chatbot", "multimodal", "diffusion",
}

// aiDeveloperTitleTerms are matched case-sensitively, so "ML" does not match
// "html".
var aiDeveloperTitleTerms = []string{"Machine Learning", "AI", "ML", "Data Science"}

var aiSOCs = []string{SOCDataScientists, SOCResearchScientists}

// ClassifyCareer puts a petition in CareerAIML when its title names an AI or
// ML role, else in CareerSoftware when its occupation is Software Developers.
// Other petitions get "".
func ClassifyCareer(jobTitle, socTitle string) string {
	lower := strings.ToLower(jobTitle)
	for _, kw := range AIMLTitleKeywords {
		if strings.Contains(lower, kw) {
			return CareerAIML
		}
	}
	if socTitle == SOCSoftwareDevelopers {
		return CareerSoftware
	}
	return ""
}

// IsAIDeveloper reports whether a petition is a data or research scientist,
// or a software developer with an AI title.
func IsAIDeveloper(jobTitle, socTitle string) bool {
	if slices.Contains(aiSOCs, socTitle) {
		return true
	}
	if socTitle != SOCSoftwareDevelopers {
		return false
	}
	for _, term := range aiDeveloperTitleTerms {
		if strings.Contains(jobTitle, term) {
			return true
		}
	}
	return false
}

// CareerColumn is ClassifyCareer as a SQL grouping column. Rows outside both
// careers are dropped.
func CareerColumn(alias string) *storage.Derived {
	return &storage.Derived{
		Alias: alias,
		Buckets: []storage.Bucket{
			{Label: CareerAIML, When: anyKeyword(database.ColJobTitle, AIMLTitleKeywords)},
			{Label: CareerSoftware, When: [][]storage.Clause{{storage.Eq(database.ColSOCTitle, SOCSoftwareDevelopers)}}},
		},
		DropElse: true,
	}
}

// AIDeveloperColumn is IsAIDeveloper as a SQL grouping column. Rows that are
// not AI developers are dropped.
func AIDeveloperColumn(alias string) *storage.Derived {
	when := [][]storage.Clause{{storage.In(database.ColSOCTitle, aiSOCs)}}
	for _, term := range aiDeveloperTitleTerms {
		when = append(when, []storage.Clause{
			storage.Eq(database.ColSOCTitle, SOCSoftwareDevelopers),
			storage.Contains(database.ColJobTitle, term),
		})
	}
	return &storage.Derived{
		Alias:    alias,
		Buckets:  []storage.Bucket{{Label: CareerAIDevelopers, When: when}},
		DropElse: true,
	}
}
