package domain

import dErrors "parley/pkg/domain-errors"

// SocialPlatform is a domain value identifying an external platform a user
// can verify a profile on.
//
// Usage: construct via ParseSocialPlatform at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type SocialPlatform string

// Supported platforms. The verification workflow carries a profile URL
// pattern for each of these; adding a platform here without a pattern is a
// programming error caught at init.
const (
	PlatformLinkedIn  SocialPlatform = "linkedin"
	PlatformTwitter   SocialPlatform = "twitter"
	PlatformFacebook  SocialPlatform = "facebook"
	PlatformInstagram SocialPlatform = "instagram"
	PlatformYouTube   SocialPlatform = "youtube"
	PlatformTikTok    SocialPlatform = "tiktok"
)

// validPlatforms is the single source of truth for supported platforms.
var validPlatforms = map[SocialPlatform]bool{
	PlatformLinkedIn:  true,
	PlatformTwitter:   true,
	PlatformFacebook:  true,
	PlatformInstagram: true,
	PlatformYouTube:   true,
	PlatformTikTok:    true,
}

// AllPlatforms lists the supported platforms in display order.
func AllPlatforms() []SocialPlatform {
	return []SocialPlatform{
		PlatformLinkedIn,
		PlatformTwitter,
		PlatformFacebook,
		PlatformInstagram,
		PlatformYouTube,
		PlatformTikTok,
	}
}

// ParseSocialPlatform constructs a SocialPlatform from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseSocialPlatform(s string) (SocialPlatform, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "platform cannot be empty")
	}
	p := SocialPlatform(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported platform")
	}
	return p, nil
}

// IsValid checks if the platform is one of the supported enum values.
func (p SocialPlatform) IsValid() bool {
	return validPlatforms[p]
}

func (p SocialPlatform) String() string { return string(p) }
