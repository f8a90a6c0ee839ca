// Package proxy forwards detection calls to the external computer-vision
// service. There is no logic here beyond passthrough; the video endpoint
// streams, so responses are never buffered.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

type DetectorProxy struct {
	proxy *httputil.ReverseProxy
}

// NewDetectorProxy builds a reverse proxy rooted at baseURL. The timeout
// bounds dialing and response headers; response bodies may stream longer.
func NewDetectorProxy(baseURL string, timeout time.Duration) (*DetectorProxy, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse detector base url: %w", err)
	}

	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = &http.Transport{
		ResponseHeaderTimeout: timeout,
	}
	p.FlushInterval = -1 // stream immediately, no buffering
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("detector proxy error")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"success":false,"error":"Detection service unavailable"}`)
	}

	return &DetectorProxy{proxy: p}, nil
}

func (d *DetectorProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.proxy.ServeHTTP(w, r)
}
