package probes

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/siteprobe/siteprobe/pkg/bufpool"
	"github.com/siteprobe/siteprobe/pkg/iohelper"
)

// faviconPaths are tried in order; the first valid icon wins.
var faviconPaths = []string{
	"/favicon.ico",
	"/favicon.png",
	"/apple-touch-icon.png",
}

// knownFavicons maps Shodan-style favicon hashes to the product shipping
// that icon. Deliberately small: only hashes that identify software whose
// exposure is itself interesting.
var knownFavicons = map[int32]string{
	81586312:  "Jenkins",
	116323821: "Spring Boot",
}

// fetchFavicon downloads the target's favicon and returns its
// Shodan-compatible murmur3 hash, plus the product name when the hash is
// recognized. A missing favicon returns (0, "").
func fetchFavicon(ctx context.Context, client *http.Client, baseURL string, maxSize int64) (int32, string) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	for _, path := range faviconPaths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}

		if resp.StatusCode != http.StatusOK {
			iohelper.DrainAndClose(resp.Body)
			continue
		}
		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "image") && !strings.Contains(contentType, "icon") {
			iohelper.DrainAndClose(resp.Body)
			continue
		}

		data, err := iohelper.ReadBody(resp.Body, maxSize)
		iohelper.DrainAndClose(resp.Body)
		if err != nil || len(data) == 0 {
			continue
		}

		hash := faviconHash(data)
		return hash, knownFavicons[hash]
	}
	return 0, ""
}

// faviconHash computes the Shodan-compatible murmur3 hash: the icon bytes
// are base64-encoded with a newline every 76 characters (MIME framing)
// before hashing, matching what Shodan and httpx index.
func faviconHash(data []byte) int32 {
	encoded := base64.StdEncoding.EncodeToString(data)

	framed := bufpool.GetString()
	defer bufpool.PutString(framed)
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		framed.WriteString(encoded[i:end])
		framed.WriteString("\n")
	}

	return int32(murmur3.Sum32([]byte(framed.String())))
}
