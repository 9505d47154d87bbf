// Package rpc provides a JSON-RPC 2.0 server for the klingvault daemon.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/internal/wallet"
	"github.com/klingon-exchange/klingvault/pkg/logging"
)

// Server is a JSON-RPC 2.0 server.
type Server struct {
	wallet     *wallet.Service
	chains     *chain.Registry
	loadChains ChainLoader
	log        *logging.Logger
	wsHub      *WSHub
	hubStarted sync.Once
	version    string

	server   *http.Server
	listener net.Listener

	handlers map[string]Handler
	mu       sync.RWMutex
}

// ChainLoader returns the chain list installed by chains_reload.
type ChainLoader func() ([]chain.Chain, error)

// ServerConfig holds the collaborators of the server.
type ServerConfig struct {
	Wallet *wallet.Service
	// LoadChains is optional; without it chains_reload fails.
	LoadChains ChainLoader
	Version    string
	Logger     *logging.Logger
}

// Handler is a JSON-RPC method handler.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer creates a new JSON-RPC server.
func NewServer(cfg *ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault().Component("rpc")
	}

	s := &Server{
		wallet:     cfg.Wallet,
		chains:     cfg.Wallet.Chains(),
		loadChains: cfg.LoadChains,
		version:    cfg.Version,
		log:        log,
		wsHub:      NewWSHub(),
		handlers:   make(map[string]Handler),
	}

	s.registerHandlers()

	s.wallet.Subscribe(s.wsHub.Notify)

	return s
}

// registerHandlers registers all JSON-RPC method handlers.
func (s *Server) registerHandlers() {
	// Info
	s.handlers["node_info"] = s.nodeInfo

	// Mnemonic helpers
	s.handlers["wallet_generateMnemonic"] = s.walletGenerateMnemonic
	s.handlers["wallet_validateMnemonic"] = s.walletValidateMnemonic

	// Meta account lifecycle
	s.handlers["accounts_createFromMnemonic"] = s.accountsCreateFromMnemonic
	s.handlers["accounts_createFromSeed"] = s.accountsCreateFromSeed
	s.handlers["accounts_createFromKeystore"] = s.accountsCreateFromKeystore
	s.handlers["accounts_createWatchOnly"] = s.accountsCreateWatchOnly
	s.handlers["accounts_list"] = s.accountsList
	s.handlers["accounts_get"] = s.accountsGet
	s.handlers["accounts_rename"] = s.accountsRename
	s.handlers["accounts_setCurrency"] = s.accountsSetCurrency
	s.handlers["accounts_delete"] = s.accountsDelete
	s.handlers["accounts_select"] = s.accountsSelect
	s.handlers["accounts_selected"] = s.accountsSelected

	// Per-chain resolution
	s.handlers["accounts_addChainAccount"] = s.accountsAddChainAccount
	s.handlers["accounts_resolve"] = s.accountsResolve
	s.handlers["accounts_projection"] = s.accountsProjection

	// Chains
	s.handlers["chains_list"] = s.chainsList
	s.handlers["chains_reload"] = s.chainsReload

	// Codecs
	s.handlers["address_encode"] = s.addressEncode
	s.handlers["address_decode"] = s.addressDecode
	s.handlers["derivation_validate"] = s.derivationValidate
}

// Handler returns the HTTP handler serving JSON-RPC and WebSocket requests.
func (s *Server) Handler() http.Handler {
	s.hubStarted.Do(func() { go s.wsHub.Run() })

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("OPTIONS /", s.handleCORS)
	mux.HandleFunc("OPTIONS /{$}", s.handleCORS)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /ws/", s.handleWS)

	return corsMiddleware(mux)
}

// Start starts the RPC server.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC server error", "error", err)
		}
	}()

	s.log.Info("RPC server started", "addr", listener.Addr().String(), "ws", "ws://"+listener.Addr().String()+"/ws")
	return nil
}

// Stop stops the RPC server.
func (s *Server) Stop() error {
	s.wsHub.Stop()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, ParseError, "Parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", nil)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, req.ID, MethodNotFound, "Method not found", req.Method)
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		code := errorCode(err)
		if code == InternalError {
			s.log.Warn("RPC method failed", "method", req.Method, "error", err)
		}
		s.writeError(w, req.ID, code, err.Error(), nil)
		return
	}

	s.writeResult(w, req.ID, result)
}

// writeResult writes a successful response.
func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// handleCORS handles CORS preflight requests.
func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware adds CORS headers to all responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
