package score

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Tier classifies how strongly a source suggests real exposure
type Tier string

const (
	TierBreach       Tier = "breach"        // Paste sites and leak dumps
	TierPeopleSearch Tier = "people-search" // Aggregators that sell profiles
	TierSocial       Tier = "social"
	TierCode         Tier = "code"
	TierForum        Tier = "forum"
	TierGeneral      Tier = "general"
)

// tierReputation maps a tier to a reputation in [0,1]
var tierReputation = map[Tier]float64{
	TierBreach:       1.0,
	TierPeopleSearch: 0.9,
	TierSocial:       0.8,
	TierCode:         0.75,
	TierForum:        0.6,
	TierGeneral:      0.5,
}

var builtinTiers = map[string]Tier{
	"pastebin.com":         TierBreach,
	"ghostbin.com":         TierBreach,
	"rentry.co":            TierBreach,
	"justpaste.it":         TierBreach,
	"haveibeenpwned.com":   TierBreach,
	"spokeo.com":           TierPeopleSearch,
	"whitepages.com":       TierPeopleSearch,
	"beenverified.com":     TierPeopleSearch,
	"truepeoplesearch.com": TierPeopleSearch,
	"fastpeoplesearch.com": TierPeopleSearch,
	"radaris.com":          TierPeopleSearch,
	"mylife.com":           TierPeopleSearch,
	"linkedin.com":         TierSocial,
	"facebook.com":         TierSocial,
	"twitter.com":          TierSocial,
	"x.com":                TierSocial,
	"instagram.com":        TierSocial,
	"tiktok.com":           TierSocial,
	"github.com":           TierCode,
	"gitlab.com":           TierCode,
	"bitbucket.org":        TierCode,
	"gist.github.com":      TierCode,
	"reddit.com":           TierForum,
	"quora.com":            TierForum,
	"stackoverflow.com":    TierForum,
}

var pathPatterns = []struct {
	pattern *regexp.Regexp
	tier    Tier
}{
	{regexp.MustCompile(`(?i)/(?:paste|raw|dump|leak)s?/`), TierBreach},
	{regexp.MustCompile(`(?i)/(?:people|person|profile|lookup)/`), TierPeopleSearch},
	{regexp.MustCompile(`(?i)/(?:forum|thread|topic|t)/`), TierForum},
}

// ReputationClassifier assigns source tiers to page URLs
type ReputationClassifier struct {
	domainMap map[string]Tier
}

// NewReputationClassifier creates a classifier; overrides map host to tier name
func NewReputationClassifier(overrides map[string]string) *ReputationClassifier {
	c := &ReputationClassifier{domainMap: make(map[string]Tier, len(builtinTiers)+len(overrides))}
	for host, tier := range builtinTiers {
		c.domainMap[host] = tier
	}
	for host, tier := range overrides {
		c.domainMap[strings.ToLower(host)] = parseTier(tier)
	}
	return c
}

// Classify classifies a URL into a tier
func (c *ReputationClassifier) Classify(rawURL string) Tier {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return TierGeneral
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" || net.ParseIP(host) != nil {
		return TierGeneral
	}

	// Walk up the labels so subdomains inherit their parent's tier, stopping
	// at the registrable domain so a public suffix never carries a tier
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		root = host
	}
	for h := host; ; {
		if tier, ok := c.domainMap[h]; ok {
			return tier
		}
		i := strings.IndexByte(h, '.')
		if h == root || i < 0 {
			break
		}
		h = h[i+1:]
	}

	for _, p := range pathPatterns {
		if p.pattern.MatchString(parsed.Path) {
			return p.tier
		}
	}

	return TierGeneral
}

// Reputation returns the reputation in [0,1] for a URL
func (c *ReputationClassifier) Reputation(rawURL string) float64 {
	return tierReputation[c.Classify(rawURL)]
}

func parseTier(s string) Tier {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierBreach, TierPeopleSearch, TierSocial, TierCode, TierForum:
		return t
	default:
		return TierGeneral
	}
}
