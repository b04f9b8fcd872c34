package remote

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the URL scheme accepted for remote arguments.
const Scheme = "bucketctl"

// Location is a parsed remote argument: an optional server plus a path.
type Location struct {
	Host string
	User string
	Path Path
	Port int
}

// HasServer reports whether the argument named a server.
func (l Location) HasServer() bool {
	return l.Host != ""
}

func (l Location) String() string {
	if !l.HasServer() {
		return l.Path.String()
	}
	host := l.Host
	if l.Port != 0 {
		host = fmt.Sprintf("%s:%d", l.Host, l.Port)
	}
	if l.User != "" {
		return fmt.Sprintf("%s://%s@%s%s", Scheme, l.User, host, l.Path)
	}
	return fmt.Sprintf("%s://%s%s", Scheme, host, l.Path)
}

// ParseLocation parses a remote CLI argument.
//
// Supported formats:
//   - /bucket/file                        → path on the configured server
//   - bucket/file                         → same, relative to root
//   - user@host:/bucket/file              → explicit server
//   - user@host:bucket/file               → same
//   - host:/bucket/file                   → explicit server, configured user
//   - bucketctl://user@host:port/bucket   → URL form
//
// A colon splits off a server only when the part before it has no slash
// and either names a user or is followed by a slash, so "a:b/file" is the
// bucket "a:b".
func ParseLocation(arg string) Location {
	if strings.HasPrefix(arg, Scheme+"://") {
		return parseURL(arg)
	}

	colonIdx := strings.IndexByte(arg, ':')
	if colonIdx <= 0 || strings.ContainsRune(arg[:colonIdx], '/') {
		return Location{Path: rootedPath(arg)}
	}

	hostPart, rest := arg[:colonIdx], arg[colonIdx+1:]
	var user, host string
	if atIdx := strings.LastIndexByte(hostPart, '@'); atIdx >= 0 {
		user = hostPart[:atIdx]
		host = hostPart[atIdx+1:]
	} else {
		if !strings.HasPrefix(rest, "/") {
			return Location{Path: rootedPath(arg)}
		}
		host = hostPart
	}
	if host == "" {
		return Location{Path: rootedPath(arg)}
	}

	return Location{
		Host: host,
		User: user,
		Path: rootedPath(rest),
	}
}

func parseURL(raw string) Location {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return Location{Path: rootedPath(strings.TrimPrefix(raw, Scheme+"://"))}
	}

	var port int
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Location{Path: rootedPath(u.Path)}
		}
	}

	var user string
	if u.User != nil {
		user = u.User.Username()
	}

	return Location{
		Host: u.Hostname(),
		User: user,
		Port: port,
		Path: rootedPath(u.Path),
	}
}

func rootedPath(s string) Path {
	return ParsePath("/" + strings.TrimPrefix(s, "/"))
}
