package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cnic-capture/models"

	"github.com/gorilla/mux"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_INVALID_SESSION = "invalid session or nonce"
const ERR_SESSION_REMOVAL = "failed to remove session from storage"
const ERR_DECODE_REQUEST = "failed to decode request"

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
	StaticDir      string `json:"static_dir,omitempty"`
}

type ServerState struct {
	sessionStorage SessionStorage
	updateClient   OrderUpdateClient
	slots          []string
}

type SpaHandler struct {
	staticPath string
	indexPath  string
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

// ServeHTTP inspects the URL path to locate a file within the static dir
// on the SPA handler. If a file is found, it will be served. If not, the
// file located at the index path on the SPA handler will be served, which
// is the right behavior for the single-page form frontend.
func (h SpaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Debug("SPA handler serving request", "path", r.URL.Path)
	// Join internally calls path.Clean to prevent directory traversal
	path := filepath.Join(h.staticPath, r.URL.Path)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && fi.IsDir()) {
		slog.Debug("Serving index.html for path", "path", r.URL.Path)
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	if err != nil {
		slog.Error("Error stating file", "path", path, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Debug("Serving static file", "path", path)
	http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		handleStartSession(state, w, r)
	})

	router.HandleFunc("/api/capture/open", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureOpen(state, w, r)
	})
	router.HandleFunc("/api/capture/started", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureStarted(state, w, r)
	})
	router.HandleFunc("/api/capture/fail", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureFail(state, w, r)
	})
	router.HandleFunc("/api/capture/frame", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureFrame(state, w, r)
	})
	router.HandleFunc("/api/capture/retake", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureRetake(state, w, r)
	})
	router.HandleFunc("/api/capture/accept", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureAccept(state, w, r)
	})
	router.HandleFunc("/api/capture/cancel", func(w http.ResponseWriter, r *http.Request) {
		handleCaptureCancel(state, w, r)
	})

	router.HandleFunc("/api/uploads/{slot}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			handleGetSlot(state, w, r)
			return
		}
		handleUpload(state, w, r)
	}).Methods(http.MethodGet, http.MethodPost)

	router.HandleFunc("/api/orders/update", func(w http.ResponseWriter, r *http.Request) {
		handleOrderUpdate(state, w, r)
	})

	slog.Debug("Registered all API routes")

	staticDir := config.StaticDir
	if staticDir == "" {
		staticDir = "../frontend/build"
	}
	spa := SpaHandler{staticPath: staticDir, indexPath: "index.html"}
	router.PathPrefix("/").Handler(spa)

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

func handleStartSession(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to start a form session")

	sessionId := GenerateSessionId()
	if sessionId == "" {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate session ID", fmt.Errorf("failed to generate session ID"))
		return
	}

	nonce, err := GenerateNonce(8)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate nonce", err)
		return
	}

	session := models.NewFormSession(nonce)
	if err := state.sessionStorage.StoreSession(sessionId, session); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to store session", err)
		return
	}

	response := models.StartSessionResponse{
		SessionId: sessionId,
		Nonce:     nonce,
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Form session started", "session_id", sessionId)
}

// -----------------------------------------------------------------------------------

// loadSession retrieves the session and validates the presented nonce.
func loadSession(storage SessionStorage, ref models.SessionRef) (*models.FormSession, error) {
	slog.Debug("Validating session and nonce", "session_id", ref.SessionId)
	session, err := storage.RetrieveSession(ref.SessionId)
	if err != nil {
		slog.Warn("Failed to retrieve session from storage", "session_id", ref.SessionId, "error", err)
		return nil, fmt.Errorf("failed to get session from storage: %w", err)
	}

	if session.Nonce == "" || session.Nonce != ref.Nonce {
		slog.Warn("Invalid nonce or session", "session_id", ref.SessionId, "nonce_match", session.Nonce == ref.Nonce)
		return nil, fmt.Errorf("%s", ERR_INVALID_SESSION)
	}

	return session, nil
}

func GenerateSessionId() string {
	sessionId := make([]byte, 16)
	if _, err := rand.Read(sessionId); err != nil {
		slog.Error("failed to generate session ID", "error", err)
		return ""
	}
	return hex.EncodeToString(sessionId)
}

// GenerateNonce Generates a random nonce
func GenerateNonce(i int) (string, error) {
	nonce := make([]byte, i)
	if _, err := rand.Read(nonce); err != nil {
		slog.Error("failed to generate nonce", "error", err)
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(nonce), nil
}

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
	return nil
}

func decodeJSON[T any](r *http.Request) (T, error) {
	var request T
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		slog.Warn("Failed to decode request body", "error", err)
		return request, fmt.Errorf("decode request body: %w", err)
	}
	return request, nil
}
