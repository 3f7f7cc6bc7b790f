package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// maxRequestBytes limits the size of a single request body
const maxRequestBytes = 64 << 20

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	metrics transport.MetricsWriteFunc
	config  common.ServerConfig
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) RegisterMetrics(metrics transport.MetricsWriteFunc) {
	t.metrics = metrics
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	timeout := time.Duration(config.TimeoutSecond) * time.Second
	server := &http.Server{
		Addr:         config.Endpoint,
		Handler:      t.routes(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	Logger.Infof("Starting HTTP server on %s", config.Endpoint)
	return server.ListenAndServe()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// routes creates the request multiplexer of the server
func (t *httpServerTransport) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{shardId}", t.handleRequest)
	mux.HandleFunc("GET /metrics", t.handleMetrics)

	if t.config.LogLevel == "debug" {
		return loggerMiddleware(mux)
	}
	return mux
}

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	shardId, err := strconv.ParseUint(r.PathValue("shardId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid shardId", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if t.handler == nil {
		http.Error(w, "No handler registered", http.StatusServiceUnavailable)
		return
	}

	resp := t.handler(shardId, body)
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("failed to write response for shard %d: %v", shardId, err)
	}
}

// handleMetrics writes the registered metrics in Prometheus text format
func (t *httpServerTransport) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if t.metrics == nil {
		http.Error(w, "No metrics registered", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	t.metrics(w)
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
