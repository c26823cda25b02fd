package domain

// DefaultFeedURL backs the top-stories category when no explicit URL is set.
const DefaultFeedURL = "https://rss.feedspot.com/u/72252f9f2933826fe9d1a2da83d6122c/rss/rsscombiner"

// MaxItems caps how many entries a single fetch returns regardless of the
// requested limit.
const MaxItems = 100

// Category is a curated feed the digest knows how to fetch.
type Category struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"-"`
}

// Entry is one normalized item from an upstream feed. Summary and subtitle
// are plain text with markup stripped.
type Entry struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
	Source    string `json:"source,omitempty"`
	Subtitle  string `json:"subtitle,omitempty"`
	Image     string `json:"image,omitempty"`
}

// Result is the outcome of fetching one curated category.
type Result struct {
	FeedTitle           string   `json:"feedTitle"`
	FeedLink            string   `json:"feedLink"`
	Category            string   `json:"category"`
	CategoryName        string   `json:"categoryName"`
	CategoryDescription string   `json:"categoryDescription"`
	Entries             []*Entry `json:"entries"`
}

// Analysis is the editorial narrative produced for a fetched feed.
type Analysis struct {
	Narrative string         `json:"narrative"`
	Usage     map[string]any `json:"usage,omitempty"`
}

// Categories returns the curated registry in stable order. top-stories is the
// default category.
func Categories() []Category {
	return []Category{
		{
			Slug:        "top-stories",
			Name:        "Front Page",
			Description: "Morning digest of the most relevant headlines.",
			URL:         DefaultFeedURL,
		},
		{
			Slug:        "business",
			Name:        "Business Ledger",
			Description: "Market movers, finance news, and boardroom shifts.",
			URL:         "https://rss.feedspot.com/folder/4BnLtF8d5g==/rss/rsscombiner",
		},
		{
			Slug:        "science",
			Name:        "Science Dispatch",
			Description: "Discoveries across biology, research, and innovation.",
			URL:         "https://rss.feedspot.com/folder/5hnLtWAh7A==/rss/rsscombiner",
		},
	}
}

// CategoryBySlug looks up a curated category. Returns nil for unknown slugs.
func CategoryBySlug(slug string) *Category {
	for _, c := range Categories() {
		if c.Slug == slug {
			return &c
		}
	}
	return nil
}
