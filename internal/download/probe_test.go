package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func headServer(t *testing.T, headers map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeParsesHeaders(t *testing.T) {
	srv := headServer(t, map[string]string{
		"Content-Length":      "4096",
		"Accept-Ranges":       "bytes",
		"Content-Disposition": `attachment; filename="report final.pdf"`,
	})
	engine := New(Config{URL: srv.URL, Retry: RetryPolicy{MaxAttempts: 1}}, srv.Client(), nil)
	info, err := engine.Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(4096), info.Size)
	require.True(t, info.AcceptRanges)
	require.Equal(t, "report final.pdf", info.SuggestedName)
}

func TestProbeAcceptRangesNone(t *testing.T) {
	srv := headServer(t, map[string]string{
		"Content-Length": "4096",
		"Accept-Ranges":  "none",
	})
	engine := New(Config{URL: srv.URL, Retry: RetryPolicy{MaxAttempts: 1}}, srv.Client(), nil)
	info, err := engine.Probe(context.Background())
	require.NoError(t, err)
	require.False(t, info.AcceptRanges)
}

func TestProbeNoRangeHeader(t *testing.T) {
	srv := headServer(t, map[string]string{"Content-Length": "4096"})
	engine := New(Config{URL: srv.URL, Retry: RetryPolicy{MaxAttempts: 1}}, srv.Client(), nil)
	info, err := engine.Probe(context.Background())
	require.NoError(t, err)
	require.False(t, info.AcceptRanges)
}

func TestProbeMissingContentLength(t *testing.T) {
	srv := headServer(t, map[string]string{"Accept-Ranges": "bytes"})
	engine := New(Config{URL: srv.URL, Retry: RetryPolicy{MaxAttempts: 1}}, srv.Client(), nil)
	info, err := engine.Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size)
}

func TestProbeRetriesThenFails(t *testing.T) {
	ts := newTestServer(t, testData(16))
	ts.headStatus = http.StatusServiceUnavailable
	engine := New(Config{URL: ts.srv.URL, Retry: RetryPolicy{MaxAttempts: 3}}, ts.srv.Client(), nil)

	_, err := engine.Probe(context.Background())
	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusServiceUnavailable, status.Code)
	require.Equal(t, int64(3), ts.headCount.Load())
}

func TestProbeCachesResult(t *testing.T) {
	ts := newTestServer(t, testData(16))
	engine := New(Config{URL: ts.srv.URL, Retry: RetryPolicy{MaxAttempts: 1}}, ts.srv.Client(), nil)

	first, err := engine.Probe(context.Background())
	require.NoError(t, err)
	second, err := engine.Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int64(1), ts.headCount.Load())
}

func TestFileNameFromDisposition(t *testing.T) {
	require.Equal(t, "a.txt", fileNameFromDisposition(`attachment; filename="a.txt"`))
	require.Equal(t, "", fileNameFromDisposition(""))
	require.Equal(t, "", fileNameFromDisposition("attachment"))
	// Characters outside the safe set are replaced.
	require.Equal(t, "a_b.txt", fileNameFromDisposition(`attachment; filename="a/b.txt"`))
	// RFC 5987 extended params are percent-decoded before sanitizing.
	require.Equal(t, "na_ve file.txt", fileNameFromDisposition(`attachment; filename*=UTF-8''na%C3%AFve%20file.txt`))
}
