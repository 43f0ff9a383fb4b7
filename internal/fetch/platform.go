package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

// Known platforms
const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformUnknown    Platform = "unknown"
)

type platformRules struct {
	hosts   []string
	content []string
	noise   []string
}

var platforms = map[Platform]platformRules{
	PlatformGreenhouse: {
		hosts:   []string{"greenhouse.io"},
		content: []string{".job__description.body", ".job__description", ".job-description__content", "#content"},
		noise:   []string{".application--wrapper", ".voluntary-self-id", "#usa_self_id_section", ".post-apply"},
	},
	PlatformLever: {
		hosts:   []string{"lever.co"},
		content: []string{".posting-page", ".posting-description", ".content"},
		noise:   []string{".apply-section", ".lever-application-form", ".posting-apply"},
	},
	PlatformWorkday: {
		hosts:   []string{"workday.com", "myworkdayjobs.com"},
		content: []string{"[data-automation-id='jobDescription']", ".job-description"},
		noise:   []string{"[data-automation-id='applyButton']", ".application-section"},
	},
}

// commonNoise is removed from every job posting
var commonNoise = []string{
	"form", ".application-form", ".apply-button-container",
	".eeo-statement", ".eeo-section", ".legal-disclosure",
	".social-share", ".share-buttons",
	".cookie-consent", ".gdpr-notice",
}

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for p, rules := range platforms {
		for _, h := range rules.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return p
			}
		}
	}
	return PlatformUnknown
}

// PlatformContentSelectors returns content selectors for a platform, falling
// back to the generic job posting selectors.
func PlatformContentSelectors(platform Platform) []string {
	if rules, ok := platforms[platform]; ok {
		return append(append([]string{}, rules.content...), JobPostingSelectors()...)
	}
	return JobPostingSelectors()
}

// PlatformNoiseSelectors returns the noise selectors for a platform
func PlatformNoiseSelectors(platform Platform) []string {
	out := append([]string{}, commonNoise...)
	return append(out, platforms[platform].noise...)
}
