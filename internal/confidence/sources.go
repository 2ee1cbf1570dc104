package confidence

import (
	"net/url"
	"strings"
)

// Source quality ranking, from strongest to weakest
const (
	QualityAcademic       = 100
	QualityGovernment     = 95
	QualityScientific     = 90
	QualityPrimaryNews    = 80
	QualityProfessional   = 75
	QualitySecondaryNews  = 65
	QualityVerifiedWiki   = 60
	QualityCorporate      = 55
	QualityExpertBlog     = 50
	QualityVerifiedSocial = 40
	QualityExpertForum    = 35
	QualityUnverifiedWiki = 30
	QualityGeneralBlog    = 25
	QualityGeneralForum   = 20
	QualityGeneralSocial  = 15
	QualityUnknown        = 10
	QualityAIGenerated    = 5
)

var (
	academicHosts       = []string{"arxiv.org", "doi.org", "scholar.google.com", "jstor.org", "pubmed.ncbi.nlm.nih.gov", "acm.org", "springer.com"}
	scientificHosts     = []string{"nature.com", "science.org", "sciencedirect.com", "cell.com", "plos.org", "pnas.org"}
	primaryNewsHosts    = []string{"reuters.com", "apnews.com", "bbc.co.uk", "bbc.com", "nytimes.com", "wsj.com", "ft.com", "theguardian.com"}
	professionalHosts   = []string{"ieee.org", "nist.gov", "who.int", "imf.org", "worldbank.org", "oecd.org"}
	secondaryNewsHosts  = []string{"cnn.com", "foxnews.com", "nbcnews.com", "abcnews.go.com", "news.yahoo.com", "huffpost.com"}
	expertForumHosts    = []string{"stackoverflow.com", "stackexchange.com", "serverfault.com", "superuser.com"}
	generalForumHosts   = []string{"reddit.com", "quora.com", "4chan.org"}
	generalSocialHosts  = []string{"twitter.com", "x.com", "facebook.com", "instagram.com", "tiktok.com", "threads.net"}
	generalBlogHosts    = []string{"medium.com", "substack.com", "blogspot.com", "wordpress.com", "tumblr.com"}
	unverifiedWikiHosts = []string{"fandom.com", "wikia.com", "everipedia.org"}
	aiGeneratedHosts    = []string{"ai-generated.example", "contentfarm.ai"}
)

// ClassifySource maps a URL or bare domain to its quality ranking
func ClassifySource(rawURL string) int {
	host := hostOf(rawURL)
	if host == "" {
		return QualityUnknown
	}

	switch {
	case matchesAny(host, aiGeneratedHosts) || strings.Contains(host, "ai-generated"):
		return QualityAIGenerated
	case strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") || strings.Contains(host, ".edu.") || matchesAny(host, academicHosts):
		return QualityAcademic
	case strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".mil") || strings.Contains(host, ".gov."):
		return QualityGovernment
	case matchesAny(host, scientificHosts):
		return QualityScientific
	case matchesAny(host, primaryNewsHosts):
		return QualityPrimaryNews
	case matchesAny(host, professionalHosts) || strings.HasSuffix(host, ".org") && strings.Contains(host, "ieee"):
		return QualityProfessional
	case matchesAny(host, secondaryNewsHosts):
		return QualitySecondaryNews
	case host == "wikipedia.org" || strings.HasSuffix(host, ".wikipedia.org"):
		return QualityVerifiedWiki
	case matchesAny(host, unverifiedWikiHosts) || strings.Contains(host, "wiki"):
		return QualityUnverifiedWiki
	case matchesAny(host, expertForumHosts):
		return QualityExpertForum
	case matchesAny(host, generalForumHosts) || strings.Contains(host, "forum"):
		return QualityGeneralForum
	case matchesAny(host, generalSocialHosts):
		return QualityGeneralSocial
	case matchesAny(host, generalBlogHosts) || strings.Contains(host, "blog"):
		return QualityGeneralBlog
	case strings.HasSuffix(host, ".com") || strings.HasSuffix(host, ".io") || strings.HasSuffix(host, ".co"):
		return QualityCorporate
	default:
		return QualityUnknown
	}
}

// SourceTypeName labels a quality ranking with its category
func SourceTypeName(quality int) string {
	switch {
	case quality >= QualityAcademic:
		return "academic"
	case quality >= QualityGovernment:
		return "government"
	case quality >= QualityScientific:
		return "scientific"
	case quality >= QualityPrimaryNews:
		return "primary-news"
	case quality >= QualityProfessional:
		return "professional"
	case quality >= QualitySecondaryNews:
		return "secondary-news"
	case quality >= QualityVerifiedWiki:
		return "verified-wiki"
	case quality >= QualityCorporate:
		return "corporate"
	case quality >= QualityExpertBlog:
		return "expert-blog"
	case quality >= QualityVerifiedSocial:
		return "verified-social"
	case quality >= QualityExpertForum:
		return "expert-forum"
	case quality >= QualityUnverifiedWiki:
		return "unverified-wiki"
	case quality >= QualityGeneralBlog:
		return "blog"
	case quality >= QualityGeneralForum:
		return "forum"
	case quality >= QualityGeneralSocial:
		return "social"
	case quality > QualityAIGenerated:
		return "unknown"
	default:
		return "ai-generated"
	}
}

// hostOf extracts the host from a URL or returns a bare domain unchanged
func hostOf(rawURL string) string {
	s := strings.TrimSpace(strings.ToLower(rawURL))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		parsed, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = parsed.Host
	} else if idx := strings.IndexAny(s, "/?"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, ":"); idx > 0 {
		s = s[:idx]
	}
	return strings.TrimPrefix(s, "www.")
}

// matchesAny reports whether host equals or is a subdomain of any candidate
func matchesAny(host string, candidates []string) bool {
	for _, c := range candidates {
		if host == c || strings.HasSuffix(host, "."+c) {
			return true
		}
	}
	return false
}
