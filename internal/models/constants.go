package models

const (
	// corpus layout
	DefaultTheme      = "Άγνωστη"
	ChapterNotApplied = "Not applied"
	IntroChapterTitle = "ΕΙΣΑΓΩΓΗ"

	// extraction
	YearRegex       = `\(?(\d{4})\b\)?`
	YearStripRegex  = `\s*\(?\d{4}\b\)?\s*`
	FnRegex         = `^\d+\.`
	BlankRunRegex   = `\n\s*\n+`
	DecorRegex      = `[\[\]\*]`
	BracketArtifact = ". ."

	// chapter markers of the novels
	ChapterRegex  = `ΚΕΦΑΛΑΙΟΝ\s+[Α-Ω]{1,2}[´’'ʹ]\s*[-–―]\s*[^\n]+`
	PrologueRegex = `ΠΡΟΛΟΓΟΣ`
	EpilogueRegex = `ΕΠΙΛΟΓΟΣ`

	ContextTitlePrefix = "Τίτλος: "
	ContextSeparator   = "\n\n"
)

// Collections in their canonical iteration order.
const (
	CollectionNovels   = "novels"
	CollectionStories  = "stories"
	CollectionArticles = "articles"
	CollectionPoems    = "poems"
)

var DefaultCollections = []string{
	CollectionNovels,
	CollectionStories,
	CollectionArticles,
	CollectionPoems,
}

var (
	DefaultSystemPrompt = `Είσαι ένας βοηθός που γνωρίζει σε βάθος το έργο του Αλέξανδρου Παπαδιαμάντη.
Απαντάς στα ελληνικά, με σεβασμό στο ύφος και τη γλώσσα του συγγραφέα.`

	DefaultContextualizeInstructions = `Χρησιμοποίησε τα παρακάτω αποσπάσματα από το έργο του Παπαδιαμάντη ως πλαίσιο για την απάντησή σου.
Αν τα αποσπάσματα δεν σχετίζονται με την ερώτηση, απάντησε χωρίς να τα αναφέρεις.`

	RerankPromptTemplate = `I will provide you with {{.num}} passages, each indicated by a numerical identifier [].
Rank the passages based on their relevance to the search query: {{.query}}

{{.passages}}
Search Query: {{.query}}

Rank the {{.num}} passages above based on their relevance to the search query.
All the passages should be included and listed using identifiers, in descending order of relevance.
The output format should be [] > [], e.g., [2] > [1]. Only respond with the ranking results, do not say any word or explain.`
)
