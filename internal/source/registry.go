package source

import "github.com/ppiankov/exposure/internal/model"

// FromConfig builds the enabled sources in a fixed order
func FromConfig(cfg model.SourcesConfig, fetcher PageFetcher) []Source {
	pages := cfg.PagesPerSource
	if pages <= 0 {
		pages = 1
	}

	var sources []Source
	if cfg.Bing.Enabled {
		sources = append(sources, NewBing(cfg.Bing, pages, fetcher))
	}
	if cfg.DuckDuckGo.Enabled {
		sources = append(sources, NewDuckDuckGo(cfg.DuckDuckGo, fetcher))
	}
	if cfg.Google.Enabled {
		sources = append(sources, NewGoogle(cfg.Google, pages, fetcher))
	}
	if cfg.GitHub.Enabled {
		sources = append(sources, NewGitHub(cfg.GitHub, fetcher))
	}
	if cfg.Reddit.Enabled {
		sources = append(sources, NewReddit(cfg.Reddit, fetcher))
	}
	return sources
}
