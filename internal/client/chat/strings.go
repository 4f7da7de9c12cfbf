package chat

import "github.com/dmitrijs2005/templesanathan/internal/client/models"

// Banners holds the localized chat notices.
type Banners struct {
	Title         string
	Placeholder   string
	Offline       string
	NotConfigured string
	HistoryWarn   string
	DeleteFailed  string
}

var banners = map[models.Language]Banners{
	models.English: {
		Title:         "Devotion Chat",
		Placeholder:   "Share your devotion...",
		Offline:       "You are offline. Messages won't send.",
		NotConfigured: "Chat backend is not configured.",
		HistoryWarn:   "Live chat is running without history. Connect database to persist.",
		DeleteFailed:  "Failed to delete message",
	},
	models.Telugu: {
		Title:         "భక్తి చాట్",
		Placeholder:   "మీ భక్తిని పంచుకోండి...",
		Offline:       "మీరు ఆఫ్‌లైన్‌లో ఉన్నారు. సందేశాలు పంపబడవు.",
		NotConfigured: "చాట్ సేవ కాన్ఫిగర్ చేయబడలేదు.",
		HistoryWarn:   "చాట్ చరిత్ర సేవ్ కావడం లేదు. డేటాబేస్ కనెక్ట్ చేయండి.",
		DeleteFailed:  "సందేశాన్ని తొలగించడం విఫలమైంది",
	},
}

func BannersFor(lang models.Language) Banners {
	if b, ok := banners[lang]; ok {
		return b
	}
	return banners[models.English]
}
