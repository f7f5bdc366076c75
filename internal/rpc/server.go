// Package rpc implements the ledger's HTTP API server.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/chain"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/rs/zerolog"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Server is the HTTP API server.
type Server struct {
	addr        string
	chain       *chain.Chain
	miner       *miner.Miner
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.

	// mineMu serializes /mine so concurrent requests do not race the
	// same tip; each one forges its own block in turn.
	mineMu sync.Mutex

	// ctx is cancelled by Stop to abort proof searches in flight.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new API server. The rpcCfg parameter controls IP filtering
// and CORS. A zero-value RPCConfig allows all IPs and disables CORS.
func New(addr string, ch *chain.Chain, m *miner.Miner, rpcCfg ...config.RPCConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:   addr,
		chain:  ch,
		miner:  m,
		logger: klog.RPC,
		ctx:    ctx,
		cancel: cancel,
	}

	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Mining at a high difficulty can take a while.
		WriteTimeout: 10 * time.Minute,
	}

	return s
}

// Handler returns the API routes wrapped in IP filtering and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mine", s.handleMine)
	mux.HandleFunc("POST /transactions/new", s.handleNewTransaction)
	mux.HandleFunc("GET /transactions/pending", s.handlePending)
	mux.HandleFunc("GET /chain", s.handleChain)
	mux.HandleFunc("GET /chain/validate", s.handleValidate)
	mux.HandleFunc("GET /blocks/{id}", s.handleBlock)
	mux.HandleFunc("GET /node", s.handleNode)
	return s.filter(mux)
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop aborts running proof searches and gracefully shuts down the server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// filter applies IP filtering, CORS headers and the body size limit.
func (s *Server) filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		s.setCORSHeaders(w, r)

		// Handle CORS preflight.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeMessage writes a {"message": ...} response.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageResponse{Message: msg})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}
