package receiver

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/tally/internal/config"
)

const maxBodyBytes = 4 << 20

// HTTPReceiver serves OTLP/HTTP logs at /v1/logs in protobuf or JSON.
type HTTPReceiver struct {
	cfg      config.ReceiverConfig
	sink     Sink
	logger   Logger
	listener net.Listener
	server   *http.Server
}

func NewHTTPReceiver(cfg config.ReceiverConfig, sink Sink, opts ...Option) *HTTPReceiver {
	o := buildOptions(opts)
	return &HTTPReceiver{cfg: cfg, sink: sink, logger: o.logger}
}

// Start binds the configured port and serves in the background.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	lis, err := listen(r.cfg.Bind, r.cfg.HTTPPort)
	if err != nil {
		return err
	}
	r.listener = lis

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/logs", r.handleLogs)
	r.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: HTTP receiver stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (r *HTTPReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *HTTPReceiver) Stop() {
	if r.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.server.Shutdown(ctx)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	jsonBody := isJSON(req.Header.Get("Content-Type"))
	var msg collogspb.ExportLogsServiceRequest
	if jsonBody {
		err = protojson.Unmarshal(body, &msg)
	} else {
		err = proto.Unmarshal(body, &msg)
	}
	if err != nil {
		http.Error(w, "invalid OTLP payload", http.StatusBadRequest)
		return
	}

	o := process(req.Context(), r.sink, r.logger, &msg)
	if o.retryable() {
		log.Printf("ERROR: receiver failed to log event: %v", o.err)
		http.Error(w, "logging event failed", http.StatusServiceUnavailable)
		return
	}

	resp := partialSuccess(o)
	var out []byte
	if jsonBody {
		out, err = protojson.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
	} else {
		out, err = proto.Marshal(resp)
		w.Header().Set("Content-Type", "application/x-protobuf")
	}
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
