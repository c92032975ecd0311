package sources

import (
	"net/url"
	"strings"
)

// Canonicalize turns a registry identifier into the address fetchers poll.
// Full URLs keep scheme, host and path; bare ids are expanded through template,
// which may reference {host} and {id}. An empty result means the identifier is unusable.
func Canonicalize(identifier, template, host string) string {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return ""
	}

	if u, err := url.Parse(id); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		path := strings.TrimRight(u.EscapedPath(), "/")
		return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
	}

	id = strings.Trim(id, "/")
	if idx := strings.LastIndex(id, "groups/"); idx >= 0 {
		id = id[idx+len("groups/"):]
	}
	id = strings.Trim(id, "/")
	if id == "" {
		return ""
	}

	r := strings.NewReplacer("{host}", host, "{id}", url.PathEscape(id))
	return r.Replace(template)
}

// GroupID extracts the group slug from a canonical address, falling back to the last path segment.
func GroupID(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return strings.Trim(address, "/")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "groups" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return segments[len(segments)-1]
}
