package api

import (
	"fmt"
	"net/http"
	"net/url"
)

// proxyFor picks the transport proxy by request scheme. https requests fall
// back to the http proxy; with neither configured the environment decides.
func proxyFor(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	proxies := make(map[string]*url.URL, 2)
	for scheme, raw := range map[string]string{"http": httpProxy, "https": httpsProxy} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s proxy: %w", scheme, err)
		}
		proxies[scheme] = u
	}
	if len(proxies) == 0 {
		return http.ProxyFromEnvironment, nil
	}

	return func(req *http.Request) (*url.URL, error) {
		if u, ok := proxies[req.URL.Scheme]; ok {
			return u, nil
		}
		if u, ok := proxies["http"]; ok && req.URL.Scheme == "https" {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}
