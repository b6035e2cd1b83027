package stats

import (
	"strings"

	"github.com/h1bexplorer/internal/storage"
)

// OtherIndustries is the category of employers no keyword matches
const OtherIndustries = "Other Industries"

// EmployerCategory is an industry matched by substrings of the lowercased
// parent employer name.
type EmployerCategory struct {
	Name     string
	Keywords []string
}

// EmployerCategories are tried in order; the first match wins. Short
// tokens such as "ey" and "ups" match inside longer names.
var EmployerCategories = []EmployerCategory{
	{"Big Tech", []string{
		"amazon", "google", "microsoft", "meta", "apple", "netflix", "uber", "lyft", "salesforce",
		"oracle", "adobe", "intel", "nvidia", "amd", "palantir", "airbnb", "doordash", "zoom",
		"slack", "dropbox", "spotify", "twitter", "linkedin", "snapchat", "pinterest", "square",
		"stripe", "shopify", "databricks", "snowflake", "mongodb", "elastic", "atlassian", "okta",
	}},
	{"IT Services", []string{
		"tata", "infosys", "wipro", "hcl", "cognizant", "accenture", "deloitte", "ibm", "capgemini",
		"dxc", "mindtree", "larsen", "tech mahindra", "mphasis", "lti", "persistent", "birlasoft",
		"cybage", "zensar", "hexaware", "quinnox", "ust", "globant", "endava", "epam", "perficient",
	}},
	{"Finance", []string{
		"jpmorgan", "goldman", "bank", "financial", "morgan", "wells", "citigroup", "american express",
		"visa", "mastercard", "blackrock", "fidelity", "vanguard", "state street", "pnc", "us bank",
		"capital one", "discover", "paypal", "robinhood",
	}},
	{"Consulting", []string{
		"bain", "mckinsey", "bcg", "pwc", "ey", "kpmg", "booz", "oliver wyman", "strategy&",
		"roland berger", "at kearney", "le k consulting",
	}},
	{"Healthcare", []string{
		"johnson", "pfizer", "merck", "amgen", "gilead", "bristol", "novartis", "roche", "sanofi",
		"astrazeneca", "eli lilly", "abbvie", "biogen", "regeneron", "moderna", "biontech",
		"unitedhealth", "anthem", "cigna", "aetna", "humana", "kaiser",
	}},
	{"Retail", []string{
		"walmart", "target", "home depot", "lowes", "costco", "best buy",
		"macy", "nordstrom", "kohl", "dollar general", "dollar tree", "tj maxx", "ross",
	}},
	{"Automotive", []string{
		"tesla", "ford", "general motors", "toyota", "honda", "bmw", "mercedes", "volkswagen",
		"audi", "porsche", "nissan", "hyundai", "kia", "chrysler", "dodge", "jeep", "chevrolet",
	}},
	{"Telecommunications", []string{
		"verizon", "at&t", "t-mobile", "sprint", "comcast", "charter", "cox", "centurylink",
		"frontier", "windstream", "mediacom", "optimum", "spectrum",
	}},
	{"Aerospace & Defense", []string{
		"boeing", "lockheed", "northrop", "raytheon", "general electric", "honeywell",
		"pratt & whitney", "rolls royce", "safran", "airbus", "spacex", "blue origin",
	}},
	{"Energy & Utilities", []string{
		"exxon", "chevron", "shell", "bp", "conocophillips", "duke energy", "southern company",
		"nextera", "dominion", "pg&e", "edison", "conedison", "national grid",
	}},
	{"Media & Entertainment", []string{
		"disney", "warner", "paramount", "sony", "universal", "hulu", "discovery",
		"viacom", "cbs", "nbc", "abc", "fox", "cnn", "espn", "mtv", "comedy central",
	}},
	{"Insurance", []string{
		"state farm", "allstate", "progressive", "geico", "liberty mutual", "farmers",
		"nationwide", "travelers", "hartford", "metlife", "prudential", "aflac",
	}},
	{"Real Estate & Construction", []string{
		"keller williams", "re/max", "century 21", "coldwell banker", "berkshire hathaway",
		"beazer", "pulte", "lennar", "dr horton", "kb home", "toll brothers",
	}},
	{"Food & Beverage", []string{
		"mcdonalds", "starbucks", "coca cola", "pepsi", "nestle", "kraft", "kellogg",
		"general mills", "campbell", "hershey", "mondelez", "unilever", "procter & gamble",
	}},
	{"Transportation & Logistics", []string{
		"fedex", "ups", "dhl", "usps", "grubhub", "instacart", "postmates",
	}},
	{"Education & Training", []string{
		"kaplan", "pearson", "mcgraw hill", "cengage", "wiley", "blackboard", "canvas",
		"coursera", "udemy", "edx", "pluralsight",
	}},
	{"Government & Non-Profit", []string{
		"united states", "federal", "state of", "city of", "county of", "department of",
		"university of", "college", "school district", "red cross", "united way",
	}},
}

// ClassifyEmployer returns the industry category of a parent employer name
func ClassifyEmployer(name string) string {
	lower := strings.ToLower(name)
	for _, cat := range EmployerCategories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat.Name
			}
		}
	}
	return OtherIndustries
}

// EmployerTypeColumn buckets rows by employer industry in SQL, mirroring
// ClassifyEmployer so medians can be computed per category.
func EmployerTypeColumn(alias string) *storage.Derived {
	d := &storage.Derived{Alias: alias, Else: OtherIndustries}
	for _, cat := range EmployerCategories {
		d.Buckets = append(d.Buckets, storage.Bucket{
			Label: cat.Name,
			When:  anyKeyword(storage.FacetCompany.Column(), cat.Keywords),
		})
	}
	return d
}

// anyKeyword renders one single-clause group per keyword
func anyKeyword(column string, keywords []string) [][]storage.Clause {
	groups := make([][]storage.Clause, 0, len(keywords))
	for _, kw := range keywords {
		groups = append(groups, []storage.Clause{storage.ContainsCI(column, kw)})
	}
	return groups
}
