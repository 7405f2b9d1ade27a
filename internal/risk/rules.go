package risk

import "github.com/ppiankov/exposure/internal/model"

// rule emits one recommendation when its condition holds
type rule struct {
	when func(s summary) bool
	text string
}

// rules are evaluated in order; each fires at most once
var rules = []rule{
	{
		when: func(s summary) bool { return s.level == model.RiskHigh },
		text: "High exposure: your personal information is widely available. Act now to remove or limit what is publicly accessible.",
	},
	{
		when: func(s summary) bool { return s.relevant[model.PIIEmail] > 0 },
		text: "Review account recovery settings and enable two-factor authentication on accounts tied to the exposed email.",
	},
	{
		when: func(s summary) bool { return s.urls[model.PIIEmail] > 2 },
		text: "Your email appears on multiple sites. Consider separate addresses for public profiles and private accounts.",
	},
	{
		when: func(s summary) bool { return s.relevant[model.PIIPhone] > 0 },
		text: "Your phone number is publicly visible. Use a secondary number for online services and watch for SMS scams.",
	},
	{
		when: func(s summary) bool { return s.relevant[model.PIIAddress] > 0 },
		text: "Avoid publishing your full street address; share city or region only.",
	},
	{
		when: func(s summary) bool { return s.high[model.PIIAddress] > 0 },
		text: "Contact the owners of sites listing your address and request removal.",
	},
	{
		when: func(s summary) bool {
			return s.high[model.PIINameContext] > 0 && s.high[model.PIIEmail] > 0
		},
		text: "Your name and email appear together, which enables targeted phishing. Limit what you share on those pages.",
	},
	{
		when: func(s summary) bool { return s.relevant[model.PIIOther] > 0 },
		text: "Sensitive identifiers (SSN, card or IP-shaped data) were found near your details. Review those pages and report them.",
	},
	{
		when: func(s summary) bool { return s.level == model.RiskMedium },
		text: "Audit your social media profiles for contact details and location information.",
	},
	{
		when: func(s summary) bool { return s.level != model.RiskLow },
		text: "Opt out of people-search directories and consider a privacy-focused search engine.",
	},
}

func recommend(s summary) []string {
	var out []string
	for _, r := range rules {
		if r.when(s) {
			out = append(out, r.text)
		}
	}
	return out
}
