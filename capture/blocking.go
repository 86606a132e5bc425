package capture

import "sort"

// resourcePatterns maps configured resource type names to URL patterns for
// Network.setBlockedURLs.
var resourcePatterns = map[string][]string{
	"Image":      {"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.avif", "*.svg", "*.ico"},
	"Stylesheet": {"*.css"},
	"Font":       {"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot"},
	"Media":      {"*.mp4", "*.webm", "*.mp3", "*.ogg", "*.wav", "*.m3u8"},
}

// adDomains is a set of well-known ad and tracking domains blocked when
// BlockAds is enabled.
var adDomains = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"google-analytics.com",
	"googletagmanager.com",
	"googletagservices.com",
	"connect.facebook.net",
	"adnxs.com",
	"adsrvr.org",
	"amazon-adsystem.com",
	"criteo.com",
	"criteo.net",
	"outbrain.com",
	"taboola.com",
	"moatads.com",
	"pubmatic.com",
	"rubiconproject.com",
	"scorecardresearch.com",
	"quantserve.com",
	"hotjar.com",
	"ads-twitter.com",
	"chartbeat.com",
	"media.net",
	"bidswitch.net",
	"openx.net",
	"casalemedia.com",
	"demdex.net",
	"krxd.net",
	"bluekai.com",
	"mathtag.com",
	"serving-sys.com",
	"rlcdn.com",
	"sharethis.com",
	"addthis.com",
}

// BlockPatterns builds the URL pattern list for the configured resource
// types and, optionally, the ad domain list. Unknown type names are ignored.
// The result is sorted and free of duplicates.
func BlockPatterns(types []string, blockAds bool) []string {
	set := make(map[string]struct{})
	for _, t := range types {
		for _, p := range resourcePatterns[t] {
			set[p] = struct{}{}
		}
	}
	if blockAds {
		for _, d := range adDomains {
			set["*://"+d+"/*"] = struct{}{}
			set["*."+d+"/*"] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
