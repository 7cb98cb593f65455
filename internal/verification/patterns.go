package verification

import (
	"fmt"
	"regexp"

	"parley/pkg/domain"
)

// Canonical profile-URL shapes per platform. Hosts are matched
// case-insensitively with an optional www. prefix; a single trailing slash is
// tolerated. The shape is the only gate here: confirming the code actually
// appears on the profile is the moderator's job.
var profilePatterns = map[domain.SocialPlatform]*regexp.Regexp{
	domain.PlatformLinkedIn: regexp.MustCompile(
		`^(?i:https?://(www\.)?linkedin\.com)/(in|company)/[A-Za-z0-9%_.\-]+/?$`),
	domain.PlatformTwitter: regexp.MustCompile(
		`^(?i:https?://(www\.)?(twitter\.com|x\.com))/[A-Za-z0-9_]{1,15}/?$`),
	domain.PlatformFacebook: regexp.MustCompile(
		`^(?i:https?://(www\.)?facebook\.com)/[A-Za-z0-9.]+/?$`),
	domain.PlatformInstagram: regexp.MustCompile(
		`^(?i:https?://(www\.)?instagram\.com)/[A-Za-z0-9_.]+/?$`),
	domain.PlatformYouTube: regexp.MustCompile(
		`^(?i:https?://(www\.)?youtube\.com)/(@[A-Za-z0-9_.\-]+|channel/[A-Za-z0-9_\-]+|c/[A-Za-z0-9_\-]+|user/[A-Za-z0-9_\-]+)/?$`),
	domain.PlatformTikTok: regexp.MustCompile(
		`^(?i:https?://(www\.)?tiktok\.com)/@[A-Za-z0-9_.]+/?$`),
}

func init() {
	// Every supported platform must carry a pattern; a miss here is a
	// programming error, not an input error.
	for _, p := range domain.AllPlatforms() {
		if _, ok := profilePatterns[p]; !ok {
			panic(fmt.Sprintf("verification: no profile pattern for platform %q", p))
		}
	}
}

// ValidateProfileURL checks the submitted URL against the platform's
// canonical shape.
func ValidateProfileURL(platform domain.SocialPlatform, profileURL string) error {
	pattern, ok := profilePatterns[platform]
	if !ok {
		return fmt.Errorf("platform %q: %w", platform, ErrInvalidProfileURL)
	}
	if !pattern.MatchString(profileURL) {
		return fmt.Errorf("%q is not a %s profile url: %w", profileURL, platform, ErrInvalidProfileURL)
	}
	return nil
}
