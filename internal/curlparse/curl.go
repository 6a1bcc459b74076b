// Package curlparse translates a curl invocation copied from a browser's
// "Copy as cURL" into the method, URL, headers and body of a download
// request. Only the flags browsers emit are understood; anything else is
// skipped.
package curlparse

import (
	"errors"
	"fmt"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

var ErrNoURL = errors.New("no URL found in curl command")

// Parse accepts either a bare URL or a full curl command string, possibly
// spanning multiple backslash-continued lines.
func Parse(curlString string) (*Request, error) {
	s := strings.ReplaceAll(curlString, "\\\n", " ")
	s = strings.TrimSpace(s)
	req := &Request{Headers: make(map[string]string)}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		req.URL = s
		req.Method = "GET"
		return req, nil
	}

	tokens, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("tokenizing curl command: %w", err)
	}
	if len(tokens) == 0 || tokens[0] != "curl" {
		return nil, errors.New("input is neither a URL nor a curl command")
	}

	next := func(i int) (string, bool) {
		if i+1 < len(tokens) {
			return tokens[i+1], true
		}
		return "", false
	}
	for i := 1; i < len(tokens); i++ {
		token := tokens[i]
		switch {
		case token == "-X" || token == "--request":
			if v, ok := next(i); ok {
				req.Method = strings.ToUpper(v)
				i++
			}
		case strings.HasPrefix(token, "-X") && len(token) > 2:
			req.Method = strings.ToUpper(token[2:])
		case token == "-H" || token == "--header":
			if v, ok := next(i); ok {
				if key, value, found := strings.Cut(v, ":"); found {
					req.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
				}
				i++
			}
		case token == "-d" || token == "--data" || token == "--data-raw" ||
			token == "--data-binary" || token == "--data-ascii":
			if v, ok := next(i); ok {
				req.Body = v
				i++
			}
		case token == "-b" || token == "--cookie":
			if v, ok := next(i); ok {
				req.Headers["Cookie"] = v
				i++
			}
		case token == "-A" || token == "--user-agent":
			if v, ok := next(i); ok {
				req.Headers["User-Agent"] = v
				i++
			}
		case token == "-e" || token == "--referer":
			if v, ok := next(i); ok {
				req.Headers["Referer"] = v
				i++
			}
		case token == "--url":
			if v, ok := next(i); ok {
				req.URL = v
				i++
			}
		case token == "--compressed" || token == "-s" || token == "-L" ||
			token == "--location" || token == "-k" || token == "--insecure":
			// no-op flags for download purposes
		case strings.HasPrefix(token, "-"):
			// unknown flag, skip it
		default:
			if req.URL == "" {
				req.URL = token
			}
		}
	}

	if req.URL == "" {
		return nil, ErrNoURL
	}
	if req.Method == "" {
		if req.Body != "" {
			req.Method = "POST"
		} else {
			req.Method = "GET"
		}
	}
	return req, nil
}
