package download

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/hsget/hsget/internal/utils"
)

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// Probe issues a HEAD request (with the same headers as the download) to
// learn the resource size and whether the server accepts range requests.
// Probe failure after retries is fatal for the whole download.
func (e *Engine) Probe(ctx context.Context) (ResourceInfo, error) {
	if e.probed {
		return e.info, nil
	}
	log := utils.GetLogger("probe").With().Str("url", e.cfg.URL).Logger()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.backoff(ctx); err != nil {
				lastErr = err
				break
			}
		}
		info, err := e.probeOnce(ctx)
		if err == nil {
			e.info = info
			e.probed = true
			return info, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("maxAttempts", e.cfg.Retry.MaxAttempts).Msg("HEAD request failed")
		if ctx.Err() != nil {
			break
		}
	}
	return ResourceInfo{}, &ProbeError{URL: e.cfg.URL, Err: lastErr}
}

func (e *Engine) probeOnce(ctx context.Context) (ResourceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "HEAD", e.cfg.URL, nil)
	if err != nil {
		return ResourceInfo{}, err
	}
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return ResourceInfo{}, err
	}
	defer resp.Body.Close()
	if !e.cfg.statusAllowed(resp.StatusCode) {
		return ResourceInfo{}, &StatusError{Code: resp.StatusCode}
	}

	var info ResourceInfo
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > 0 {
			info.Size = size
		}
	}
	// Presence of the header enables ranged download, unless the server
	// explicitly reports "none".
	if ar, ok := resp.Header[http.CanonicalHeaderKey("Accept-Ranges")]; ok {
		info.AcceptRanges = len(ar) == 0 || !strings.EqualFold(strings.TrimSpace(ar[0]), "none")
	}
	info.SuggestedName = fileNameFromDisposition(resp.Header.Get("Content-Disposition"))
	return info, nil
}

func fileNameFromDisposition(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	// ParseMediaType decodes RFC 5987 filename* params into "filename".
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameSanitizer.ReplaceAllString(fn, "_")
	}
	return ""
}

func (e *Engine) requestBody() io.Reader {
	if len(e.cfg.Body) == 0 {
		return nil
	}
	return bytes.NewReader(e.cfg.Body)
}
