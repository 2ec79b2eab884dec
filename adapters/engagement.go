package adapters

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/parsers"
)

var (
	instagramUsernameRe = regexp.MustCompile(`instagram\.com/([^/?#]+)`)
	twitterIDRe         = regexp.MustCompile(`(?:twitter|x)\.com/.+/status/(\d+)`)
	youtubeIDRe         = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&?#]+)`)
)

var platformDomains = map[string]string{
	"instagram.com": models.PlatformInstagram,
	"tiktok.com":    models.PlatformTikTok,
	"twitter.com":   models.PlatformTwitter,
	"x.com":         models.PlatformTwitter,
	"reddit.com":    models.PlatformReddit,
	"youtube.com":   models.PlatformYouTube,
	"youtu.be":      models.PlatformYouTube,
}

// DetectPlatform maps a post URL to its platform by host, or "" when unknown
func DetectPlatform(postURL string) string {
	u, err := url.Parse(postURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for domain, platform := range platformDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform
		}
	}
	return ""
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func instagramUsername(channelURL string) string {
	return submatch(instagramUsernameRe, channelURL)
}

// FetchEngagements refreshes twitter and youtube posts. The provider has no
// refresh endpoint for the other platforms, so their URLs are skipped.
func (a *LiveAdapter) FetchEngagements(ctx context.Context, postURLs []string) []models.EngagementSnapshot {
	var snapshots []models.EngagementSnapshot
	for _, postURL := range postURLs {
		if ctx.Err() != nil {
			break
		}

		platform := DetectPlatform(postURL)
		fields := logrus.Fields{"post_url": postURL, "platform": platform}
		if platform == "" {
			a.log.WithFields(fields).Warn("Cannot determine platform for URL")
			continue
		}

		switch platform {
		case models.PlatformTwitter:
			id := submatch(twitterIDRe, postURL)
			if id == "" {
				continue
			}
			resp, err := a.client.Get(ctx, platform, "tweet/"+id+"/details", nil)
			if err != nil {
				a.log.WithFields(fields).WithError(err).Warn("Failed to fetch engagement")
				continue
			}
			snapshots = append(snapshots, parsers.TwitterEngagement(resp, postURL))
		case models.PlatformYouTube:
			id := submatch(youtubeIDRe, postURL)
			if id == "" {
				continue
			}
			resp, err := a.client.Get(ctx, platform, "video/"+id+"/about", nil)
			if err != nil {
				a.log.WithFields(fields).WithError(err).Warn("Failed to fetch engagement")
				continue
			}
			snapshots = append(snapshots, parsers.YouTubeEngagement(resp, postURL))
		default:
			a.log.WithFields(fields).Debug("Engagement refresh not supported for platform")
		}
	}
	return snapshots
}
