package score

import (
	"testing"
)

func TestReputationClassifier_Classify(t *testing.T) {
	c := NewReputationClassifier(map[string]string{
		"Example.org":   "people-search",
		"weird.example": "bogus",
	})

	tests := []struct {
		url  string
		want Tier
	}{
		{"https://pastebin.com/abc", TierBreach},
		{"https://www.spokeo.com/Jane-Roe", TierPeopleSearch},
		{"https://uk.linkedin.com/in/janeroe", TierSocial},
		{"https://gist.github.com/janeroe/1", TierCode},
		{"https://old.reddit.com/r/x", TierForum},
		{"https://example.org/anything", TierPeopleSearch},
		{"https://weird.example/", TierGeneral},
		{"https://unknown.net/leaks/2024.txt", TierBreach},
		{"https://unknown.net/people/jane-roe", TierPeopleSearch},
		{"https://unknown.net/blog/post", TierGeneral},
		{"http://10.0.0.1/paste/1", TierGeneral},
		{"::not a url", TierGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := c.Classify(tt.url); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestReputationClassifier_PublicSuffixOverrideIgnored(t *testing.T) {
	c := NewReputationClassifier(map[string]string{"co.uk": "breach", "example.co.uk": "forum"})

	if got := c.Classify("https://shop.other.co.uk/"); got != TierGeneral {
		t.Errorf("public suffix override leaked into %s", got)
	}
	if got := c.Classify("https://shop.example.co.uk/"); got != TierForum {
		t.Errorf("registrable domain override not applied, got %s", got)
	}
	if got := c.Classify("http://localhost/x"); got != TierGeneral {
		t.Errorf("single-label host classified as %s", got)
	}
}

func TestReputationClassifier_Reputation(t *testing.T) {
	c := NewReputationClassifier(nil)

	if got := c.Reputation("https://pastebin.com/x"); got != 1.0 {
		t.Errorf("breach reputation = %v, want 1.0", got)
	}
	if got := c.Reputation("https://example.com/"); got != 0.5 {
		t.Errorf("general reputation = %v, want 0.5", got)
	}
	if c.Reputation("https://reddit.com/") >= c.Reputation("https://linkedin.com/") {
		t.Error("forums should rank below social platforms")
	}
}
