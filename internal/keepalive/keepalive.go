// Package keepalive exposes a tiny HTTP endpoint so hosting platforms
// that probe the process over HTTP keep it alive.
package keepalive

import (
	"net/http"

	"go.uber.org/zap"
)

const defaultPort = "8080"

// Serve blocks on an HTTP listener answering "OK" on /. Run it in a
// goroutine next to the bot's update loop.
func Serve(port string) error {
	if port == "" {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	zap.L().Info("Keepalive server listening", zap.String("port", port))
	return http.ListenAndServe(":"+port, mux)
}
