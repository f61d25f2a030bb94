// Package web serves the embedded browser client.
//
// The client is a single self-contained page: it records microphone audio,
// downsamples it to 16 kHz PCM16, ships it over the websocket as an
// audio_processing message, and plays back the binary audio replies.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexPage []byte

// Handler returns the handler for the root path. Any path other than "/"
// is a 404; the websocket and health routes are registered separately.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexPage)
	})
}
