package go2tv

import (
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"go2tv.app/go2tv/v2/utils"
)

// detectMediaType resolves a DLNA-friendly content type for a file path or
// URL. The renderer gets application/octet-stream when nothing better is
// known; most devices sniff from there.
func detectMediaType(source string) string {
	if isRemoteURL(source) {
		return typeFromExtension(mediaExt(source))
	}

	mediaType, err := utils.GetMimeDetailsFromPath(source)
	if err == nil && mediaType != "" && mediaType != "/" && mediaType != "application/octet-stream" {
		return mediaType
	}
	return typeFromExtension(strings.ToLower(filepath.Ext(source)))
}

func typeFromExtension(ext string) string {
	if ext == "" {
		return "application/octet-stream"
	}
	guessed := mime.TypeByExtension(ext)
	if guessed == "" {
		return "application/octet-stream"
	}
	parts := strings.Split(guessed, ";")
	return strings.TrimSpace(parts[0])
}

func mediaExt(source string) string {
	if parsed, err := url.Parse(source); err == nil && parsed.Path != "" {
		if ext := strings.ToLower(path.Ext(parsed.Path)); isSafeExt(ext) {
			return ext
		}
	}
	if ext := strings.ToLower(filepath.Ext(source)); isSafeExt(ext) {
		return ext
	}
	return ""
}

func isSafeExt(ext string) bool {
	if ext == "" || len(ext) > 16 || !strings.HasPrefix(ext, ".") {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func isRemoteURL(source string) bool {
	parsed, err := url.Parse(source)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// mediaForSource picks the stream server's media argument: local files are
// served by path, direct URLs only need a placeholder because the renderer
// fetches the origin itself.
func mediaForSource(source string) any {
	if isRemoteURL(source) {
		return []byte("direct-url-placeholder")
	}
	return source
}
