package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/ppiankov/citegame/internal/logging"
)

const serveTimeout = 10 * time.Second

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// The report carries its stylesheet inline
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
}

func serveBytes(contentType string, body []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		start := time.Now()
		w.Header().Set("Content-Type", contentType)
		securityHeaders(w)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			logging.Debug("write response", "path", r.URL.Path, "err", err)
			return
		}
		logging.Debug("served", "path", r.URL.Path, "remote", r.RemoteAddr, "took", time.Since(start).Round(time.Microsecond))
	}
}

// newReportRouter serves the report page, its data and a health check
func newReportRouter(doc, data []byte) *httprouter.Router {
	mux := httprouter.New()
	mux.GET("/", serveBytes("text/html; charset=utf-8", doc))
	mux.GET("/report.json", serveBytes("application/json", data))
	mux.GET("/healthz", serveBytes("text/plain; charset=utf-8", []byte("ok\n")))
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logging.Error("panic serving request", "path", r.URL.Path, "panic", i)
		securityHeaders(w)
		http.Error(w, "An error has occurred. Please try again.", http.StatusInternalServerError)
	}
	return mux
}

// serveReport blocks serving the report until ctx is done
func serveReport(ctx context.Context, addr string, doc, data []byte) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newReportRouter(doc, data),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       serveTimeout,
		ReadHeaderTimeout: serveTimeout,
		WriteTimeout:      serveTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		logging.Info("serving report", "addr", "http://"+addr+"/")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
