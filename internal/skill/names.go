package skill

// Names of the built-in skills.
const (
	AnalyzeStock    = "analyze_stock"
	QueryMarket     = "query_market"
	ManagePortfolio = "manage_portfolio"
	TrackPortfolio  = "track_portfolio"
	SearchGitHub    = "search_github"
	SearchPapers    = "search_papers"
	ReadNews        = "read_news"
	Chat            = "chat"
	Help            = "help"
	Session         = "session"
)
