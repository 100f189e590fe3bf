package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("undercover v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveLobbyPage is the share-link landing page: it names the lobby and
// tells the visitor how to join from the code in the URL.
func serveLobbyPage(cfg *Config, sess *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		code := sess.Code()
		body := fmt.Sprintf("Undercover lobby <b>%s</b><br>Join with: undercover join %s --server %s",
			code, code, r.Host)
		_, _ = io.WriteString(w, newPage("Undercover", body))
	}
}

// serveLobbySocket upgrades a follower connection for this host's lobby.
// The peer identifier in the path must match the one derived from the
// lobby code; anything else is a dead address.
func serveLobbySocket(cfg *Config, sess *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		peerID := ps.ByName("peerid")
		if peerID != lobbyPeerID(sess.Code()) {
			http.Error(w, "no such lobby", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		link := newPeerLink(conn)

		select {
		case sess.register <- link:
		case <-sess.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: Peer connected from %s", realIP(r))

		go link.writePump()
		link.readPump(sess)
	}
}

// serveLobbyQR returns a PNG QR code of the share URL, so a phone can
// pick up the join flow by scanning the host's screen.
func serveLobbyQR(cfg *Config, sess *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := fmt.Sprintf("%s://%s%s/?code=%s", scheme, r.Host, cfg.prefix, sess.Code())

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// newLobbyRouter wires every route of the hosting device.
func newLobbyRouter(cfg *Config, sess *Session, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveLobbyPage(cfg, sess))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))
	mux.GET(cfg.prefix+"/peers/:peerid", serveLobbySocket(cfg, sess))
	mux.GET(cfg.prefix+"/qr", serveLobbyQR(cfg, sess))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

// ServeLobby runs the leader's HTTP server until ctx is done.
func ServeLobby(ctx context.Context, cfg *Config, sess *Session) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: undercover v%s", releaseVersion)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	errs := make(chan error, 64)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newLobbyRouter(cfg, sess, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		// No WriteTimeout: websocket channels stay open for the whole
		// session.
	}

	go func() {
		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}

// shareAddress is the best guess at how other devices reach this host,
// used for the printed share URL when no request context is available.
func shareAddress(cfg *Config) string {
	host := cfg.bind
	if host == "0.0.0.0" || host == "::" || host == "" {
		if name, err := os.Hostname(); err == nil {
			host = name
		} else {
			host = "localhost"
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.port))
}

func shareURL(cfg *Config, code string) string {
	return fmt.Sprintf("%s://%s%s/?code=%s", cfg.scheme(), shareAddress(cfg), cfg.prefix, code)
}

func shareQRURL(cfg *Config) string {
	return fmt.Sprintf("%s://%s%s/qr", cfg.scheme(), shareAddress(cfg), cfg.prefix)
}
