package main

import (
	"bufio"
	"net/url"
	"os"
	"strings"
)

// relayURLs builds the HTTP and websocket endpoints from the relay host.
func relayURLs(host string, secure bool) (base url.URL, ws url.URL) {
	base = url.URL{Scheme: "http", Host: host}
	ws = url.URL{Scheme: "ws", Host: host, Path: "/bot"}
	if secure {
		base.Scheme = "https"
		ws.Scheme = "wss"
	}
	return base, ws
}

// loadAllowedRunes reads the extra characters the receiving platform can
// render beyond ASCII, one group per line; blank lines and #-comments are
// skipped. A missing file just means ASCII only.
func loadAllowedRunes(path string) (map[rune]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	allowed := make(map[rune]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, r := range line {
			allowed[r] = struct{}{}
		}
	}
	return allowed, scanner.Err()
}
