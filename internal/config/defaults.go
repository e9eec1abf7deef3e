package config

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// DefaultBlacklist holds listing aggregators and social networks whose pages
// are never an organization's own website.
var DefaultBlacklist = []string{
	"kyero.com",
	"idealista.com",
	"realtor.com",
	"rightmove.co.uk",
	"spainhouses.net",
	"properstar.com",
	"properstar.ca",
	"zoopla.co.uk",
	"spainestate.com",
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"tripadvisor.com",
	"yelp.com",
}

// DefaultContactKeywords are matched against folded link paths and text.
var DefaultContactKeywords = []string{
	"contact",
	"contac",
	"contacto",
	"contactar",
	"contactenos",
	"contactez",
	"contatti",
	"contato",
	"kontakt",
	"yhteystiedot",
	"kapcsolat",
}

// DefaultWebsiteKeywords identify the "visit website" link on a profile page.
var DefaultWebsiteKeywords = []string{
	"sitio web",
	"website",
	"web site",
	"ir a su pagina web",
	"visitar web",
	"visit website",
	"site web",
	"webseite",
	"sito web",
	"web",
}

// DefaultSkipExtensions are file extensions never fetched as pages.
var DefaultSkipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".zip", ".rar",
	".mp3", ".mp4", ".mpeg", ".avi", ".mov", ".css", ".js", ".xml", ".json",
}

// DefaultContactSuffixes are appended to the site root in the suffix tier.
var DefaultContactSuffixes = []string{
	"contact",
	"contacto",
	"contactar",
	"contac",
	"kontakt",
	"contact-us",
	"kontakt-oss",
}

// DefaultNoiseTokens mark domains that belong to tooling, not organizations.
var DefaultNoiseTokens = []string{
	"sentry.io",
	"sentry-next.wixpress.com",
	"wixpress.com",
	"example.com",
	"domain.com",
	"yourdomain",
	"email.com",
}

// DefaultMediaExtensions reject asset names that look like addresses,
// e.g. logo@2x.png.
var DefaultMediaExtensions = []string{
	"png", "jpg", "jpeg", "gif", "svg", "webp", "mp4", "mp3", "mpeg", "js",
}
