// Package remote classifies a repository's configured remote by transport
// protocol. Classification is pure string inspection: it never touches the
// network and never fails, so a malformed remote simply maps to Unknown.
package remote

import (
	"net/url"
	"strings"
)

// Protocol is the transport scheme used to reach a Git remote.
type Protocol int

const (
	// Unknown covers absent, malformed, or unrecognized remote URLs.
	Unknown Protocol = iota
	// HTTPS covers http:// and https:// remotes.
	HTTPS
	// SSH covers ssh:// remotes and scp-style git@host:path remotes.
	SSH
)

func (p Protocol) String() string {
	switch p {
	case HTTPS:
		return "https"
	case SSH:
		return "ssh"
	default:
		return "unknown"
	}
}

// Detect classifies a remote URL. It never returns an error: anything it
// cannot recognize is Unknown so that detection can never block a caller.
func Detect(remoteURL string) Protocol {
	s := strings.TrimSpace(remoteURL)
	switch {
	case s == "":
		return Unknown
	case strings.HasPrefix(s, "git@"), strings.HasPrefix(s, "ssh://"):
		return SSH
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		return HTTPS
	default:
		return Unknown
	}
}

// ExtractDomain returns the lower-cased host of a remote URL with protocol,
// port, userinfo, and path stripped. Both URL-style and scp-style remotes
// are handled:
//
//	git@github.com:org/repo.git      -> github.com
//	https://gitlab.com/a/b.git       -> gitlab.com
//	ssh://git@bitbucket.org:22/a/b   -> bitbucket.org
//
// An unparseable input yields "".
func ExtractDomain(remoteURL string) string {
	s := strings.TrimSpace(remoteURL)
	if s == "" {
		return ""
	}

	// scp-style: user@host:path
	if !strings.Contains(s, "://") {
		if at := strings.Index(s, "@"); at >= 0 {
			rest := s[at+1:]
			if colon := strings.Index(rest, ":"); colon >= 0 {
				rest = rest[:colon]
			}
			return strings.ToLower(rest)
		}
		return ""
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
