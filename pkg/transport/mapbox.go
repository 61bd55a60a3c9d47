package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/marmos91/offlinekit/pkg/resource"
)

const (
	mapboxScheme = "mapbox://"

	// DefaultMapboxAPIURL is the API base that mapbox:// URLs resolve to.
	DefaultMapboxAPIURL = "https://api.mapbox.com"
)

// IsMapboxURL reports whether raw is served by Mapbox. Tiles from these
// hosts count toward the offline tile budget.
func IsMapboxURL(raw string) bool {
	if strings.HasPrefix(raw, mapboxScheme) {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "api.mapbox.com" ||
		strings.HasSuffix(host, ".tiles.mapbox.com") ||
		host == "mapbox.cn" || strings.HasSuffix(host, ".mapbox.cn")
}

// MapboxResolver rewrites mapbox:// URLs to API URLs.
type MapboxResolver struct {
	// BaseURL defaults to DefaultMapboxAPIURL.
	BaseURL     string
	AccessToken string
}

// Resolve returns the fetchable URL for raw. URLs that do not use the
// mapbox:// scheme are returned unchanged.
func (m MapboxResolver) Resolve(raw string, kind resource.Kind) (string, error) {
	rest, ok := strings.CutPrefix(raw, mapboxScheme)
	if !ok {
		return raw, nil
	}
	base := strings.TrimRight(m.BaseURL, "/")
	if base == "" {
		base = DefaultMapboxAPIURL
	}

	rest, query, _ := strings.Cut(rest, "?")
	section, path, _ := strings.Cut(rest, "/")

	var out string
	switch {
	case section == "styles" && kind == resource.KindStyle:
		out = base + "/styles/v1/" + path

	case section == "fonts":
		out = base + "/fonts/v1/" + path

	case section == "sprites":
		// mapbox://sprites/{user}/{style}{@2x}.{ext}
		// -> /styles/v1/{user}/{style}/sprite{@2x}.{ext}
		user, file, ok := strings.Cut(path, "/")
		if !ok {
			return "", fmt.Errorf("invalid mapbox sprite url %q", raw)
		}
		ext := ""
		if i := strings.LastIndex(file, "."); i >= 0 {
			file, ext = file[:i], file[i:]
		}
		ratio := ""
		if i := strings.Index(file, "@"); i >= 0 {
			file, ratio = file[:i], file[i:]
		}
		out = base + "/styles/v1/" + user + "/" + file + "/sprite" + ratio + ext

	case section == "tiles":
		out = base + "/v4/" + path

	case kind == resource.KindSource || (path == "" && section != ""):
		// mapbox://{tileset}[,{tileset}...] names a TileJSON.
		out = base + "/v4/" + section + ".json"
		if query == "" {
			query = "secure"
		} else {
			query += "&secure"
		}

	default:
		return "", fmt.Errorf("unsupported mapbox url %q", raw)
	}

	if m.AccessToken != "" {
		if query != "" {
			query += "&"
		}
		query += "access_token=" + url.QueryEscape(m.AccessToken)
	}
	if query != "" {
		out += "?" + query
	}
	return out, nil
}
