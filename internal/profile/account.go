package profile

import "strings"

// Kind buckets account sources into the icon families the widget renders.
type Kind string

const (
	KindTwitter  Kind = "twitter"
	KindGitHub   Kind = "github"
	KindLinkedIn Kind = "linkedin"
	KindGeneric  Kind = "generic"
)

// Kind reports which icon family represents the account's platform.
func (a Account) Kind() Kind {
	switch strings.ToLower(a.Source) {
	case "x_twitter", "twitter":
		return KindTwitter
	case "github":
		return KindGitHub
	case "linkedin":
		return KindLinkedIn
	default:
		return KindGeneric
	}
}

// URL builds the public profile link for the account. Wallet accounts
// link by identifier (the address); everything else links by username.
// Unknown platforms yield an empty string rather than a dead link.
func (a Account) URL() string {
	switch strings.ToLower(a.Source) {
	case "x_twitter", "twitter":
		return "https://x.com/" + a.Username
	case "github":
		return "https://github.com/" + a.Username
	case "linkedin":
		return "https://www.linkedin.com/in/" + a.Username
	case "lens":
		return "https://hey.xyz/u/" + a.Username
	case "farcaster":
		return "https://warpcast.com/" + a.Username
	case "wallet":
		return "https://etherscan.io/address/" + a.Identifier
	default:
		return ""
	}
}
