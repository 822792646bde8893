package resolver

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxTitleLen bounds resolved display titles; longer titles are cut and
// marked with an ellipsis.
const maxTitleLen = 200

var directMediaExts = map[string]struct{}{
	".mp4":  {},
	".m4v":  {},
	".webm": {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".ogv":  {},
	".ogg":  {},
	".mp3":  {},
	".m3u8": {},
	".ts":   {},
}

// isDirectMedia reports whether the reference already points at a playable
// asset and needs no page fetch at all.
func isDirectMedia(reference string) bool {
	ext := ""
	if parsed, err := url.Parse(reference); err == nil && parsed.Scheme != "" {
		ext = strings.ToLower(path.Ext(parsed.Path))
	} else {
		ext = strings.ToLower(filepath.Ext(reference))
	}
	_, ok := directMediaExts[ext]
	return ok
}

// mediaRule extracts a candidate media URL from a parsed document. Rules run
// in order; the first non-empty result wins.
type mediaRule struct {
	name    string
	extract func(doc *html.Node) string
}

var mediaRules = []mediaRule{
	{name: "video_src", extract: func(doc *html.Node) string {
		if n := findElement(doc, "video"); n != nil {
			if src := attr(n, "src"); src != "" {
				return src
			}
			if s := findElement(n, "source"); s != nil {
				return attr(s, "src")
			}
		}
		return ""
	}},
	{name: "og_video", extract: func(doc *html.Node) string {
		for _, prop := range []string{"og:video:secure_url", "og:video:url", "og:video"} {
			if v := metaContent(doc, prop); v != "" {
				return v
			}
		}
		return ""
	}},
	{name: "source_anywhere", extract: func(doc *html.Node) string {
		var found string
		walk(doc, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.Data == "source" {
				if src := attr(n, "src"); isDirectMedia(src) {
					found = src
					return false
				}
			}
			return true
		})
		return found
	}},
	// Generic fallback: any anchor pointing straight at a media file.
	{name: "media_link", extract: func(doc *html.Node) string {
		var found string
		walk(doc, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.Data == "a" {
				if href := attr(n, "href"); isDirectMedia(href) {
					found = href
					return false
				}
			}
			return true
		})
		return found
	}},
}

func extractMediaURL(doc *html.Node, base *url.URL) string {
	for _, r := range mediaRules {
		raw := strings.TrimSpace(r.extract(doc))
		if raw == "" {
			continue
		}
		return absoluteURL(base, raw)
	}
	return ""
}

func extractTitle(doc *html.Node) string {
	if t := metaContent(doc, "og:title"); t != "" {
		return sanitizeTitle(t)
	}
	if n := findElement(doc, "title"); n != nil {
		return sanitizeTitle(textContent(n))
	}
	return ""
}

// absoluteURL resolves a possibly-relative extracted URL against the page's
// own URL.
func absoluteURL(base *url.URL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// sanitizeTitle collapses whitespace and truncates to maxTitleLen runes with
// a trailing ellipsis. Entity decoding already happened in the HTML parser.
func sanitizeTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(title) <= maxTitleLen {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleLen]) + "…"
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func findElement(root *html.Node, name string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == name {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func metaContent(doc *html.Node, property string) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" {
			if strings.EqualFold(attr(n, "property"), property) || strings.EqualFold(attr(n, "name"), property) {
				if c := attr(n, "content"); c != "" {
					found = c
					return false
				}
			}
		}
		return true
	})
	return found
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}
