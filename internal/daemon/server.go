// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dotandev/fewdat/internal/dat"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/dotandev/fewdat/internal/telemetry"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// ServiceName prefixes every RPC method, e.g. "Codec.Decode".
const ServiceName = "Codec"

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 64 << 20

var errUnauthorized = errors.New("unauthorized")

// Server represents the JSON-RPC daemon server
type Server struct {
	authToken    string
	options      script.Options
	maxBodyBytes int64
	version      string
}

// Config holds daemon configuration
type Config struct {
	Port         string
	AuthToken    string
	Options      script.Options
	MaxBodyBytes int64
	Version      string
}

// DecryptRequest carries a container. []byte fields travel as base64.
type DecryptRequest struct {
	Data []byte `json:"data"`
}

// DecryptResponse carries the decrypted script.
type DecryptResponse struct {
	Data []byte `json:"data"`
	Size int    `json:"size"`
}

// DecodeRequest carries a container and optional decoder overrides.
type DecodeRequest struct {
	Data              []byte `json:"data"`
	Permissive        *bool  `json:"permissive,omitempty"`
	LegacyReturnTitle *bool  `json:"legacy_return_title,omitempty"`
}

// DecodeResponse is everything needed to edit and rebuild a script.
type DecodeResponse struct {
	Lines        []string `json:"lines"`
	Listing      []string `json:"listing"`
	Metadata     []byte   `json:"metadata"`
	Instructions int      `json:"instructions"`
	Labels       int      `json:"labels"`
	Skipped      int      `json:"skipped"`
}

// EncryptRequest carries edited lines and the metadata from Decode.
type EncryptRequest struct {
	Lines    []string `json:"lines"`
	Metadata []byte   `json:"metadata"`
}

// EncryptResponse carries the rebuilt container.
type EncryptResponse struct {
	Data []byte `json:"data"`
}

// VersionRequest takes no arguments.
type VersionRequest struct{}

// VersionResponse reports the daemon and opcode table versions.
type VersionResponse struct {
	Version      string `json:"version"`
	TableVersion string `json:"table_version"`
}

// NewServer creates a new JSON-RPC server
func NewServer(config Config) *Server {
	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	version := config.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		authToken:    config.AuthToken,
		options:      config.Options,
		maxBodyBytes: maxBody,
		version:      version,
	}
}

// authenticate validates the authorization token
func (s *Server) authenticate(r *http.Request) bool {
	if s.authToken == "" {
		return true // No auth required
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	// Support "Bearer <token>" format
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		return token == s.authToken
	}

	return auth == s.authToken
}

// begin authenticates the call and starts its span.
func (s *Server) begin(r *http.Request, method string) (oteltrace.Span, error) {
	_, span := telemetry.GetTracer().Start(r.Context(), "rpc_"+method)
	if !s.authenticate(r) {
		span.SetStatus(codes.Error, errUnauthorized.Error())
		span.End()
		return nil, errUnauthorized
	}
	logger.Logger.Info("Processing RPC", "method", ServiceName+"."+method)
	return span, nil
}

func finish(span oteltrace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

// Decrypt handles Codec.Decrypt calls
func (s *Server) Decrypt(r *http.Request, req *DecryptRequest, resp *DecryptResponse) error {
	span, err := s.begin(r, "decrypt")
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("fewdat.container_bytes", len(req.Data)))

	plain, err := dat.Decrypt(req.Data)
	if err != nil {
		return finish(span, err)
	}
	*resp = DecryptResponse{Data: plain, Size: len(plain)}
	return finish(span, nil)
}

// Decode handles Codec.Decode calls
func (s *Server) Decode(r *http.Request, req *DecodeRequest, resp *DecodeResponse) error {
	span, err := s.begin(r, "decode")
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("fewdat.container_bytes", len(req.Data)))

	opts := s.options
	if req.Permissive != nil {
		opts.Permissive = *req.Permissive
	}
	if req.LegacyReturnTitle != nil {
		opts.LegacyReturnTitle = *req.LegacyReturnTitle
	}

	res, err := dat.Open(req.Data, opts)
	if err != nil {
		return finish(span, err)
	}

	*resp = DecodeResponse{
		Lines:        res.Strings.Lines(),
		Listing:      res.Listing.Lines(),
		Metadata:     res.Capture,
		Instructions: res.Listing.Count(),
		Labels:       len(res.Listing.Labels),
		Skipped:      res.Listing.Skipped,
	}
	span.SetAttributes(attribute.Int("fewdat.instructions", resp.Instructions))
	return finish(span, nil)
}

// Encrypt handles Codec.Encrypt calls
func (s *Server) Encrypt(r *http.Request, req *EncryptRequest, resp *EncryptResponse) error {
	span, err := s.begin(r, "encrypt")
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("fewdat.lines", len(req.Lines)))

	container, err := dat.Encrypt(req.Lines, req.Metadata)
	if err != nil {
		return finish(span, err)
	}
	*resp = EncryptResponse{Data: container}
	return finish(span, nil)
}

// Version handles Codec.Version calls
func (s *Server) Version(r *http.Request, _ *VersionRequest, resp *VersionResponse) error {
	if !s.authenticate(r) {
		return errUnauthorized
	}
	*resp = VersionResponse{Version: s.version, TableVersion: script.TableVersion}
	return nil
}

// Handler returns the HTTP handler serving /rpc and /health.
func (s *Server) Handler() (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")

	if err := server.RegisterService(s, ServiceName); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", http.MaxBytesHandler(server, s.maxBodyBytes))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return mux, nil
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	logger.Logger.Info("Starting JSON-RPC server", "port", port)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Logger.Info("Shutting down JSON-RPC server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
