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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dotandev/fewdat/internal/cipher"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleContainer encrypts a script holding a Goto to itself, TextOut with
// strings[0] and three garbage bytes.
func sampleContainer() []byte {
	var buf bytes.Buffer
	le := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	le(39)
	le(42)
	le(0)
	buf.WriteByte(0x0B)
	le(12)
	buf.WriteByte(0x8E)
	for i := 0; i < 4; i++ {
		le(0)
	}
	buf.WriteByte(0x45)
	le(0)
	buf.Write([]byte{7, 7, 7})
	buf.WriteString("hello\x00")
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return cipher.Encrypt(buf.Bytes())
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	handler, err := NewServer(cfg).Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, token, method string, args, reply interface{}) error {
	t.Helper()
	body, err := json2.EncodeClientRequest(method, args)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return json2.DecodeClientResponse(resp.Body, reply)
}

func TestServer_DecodeEncryptRoundTrip(t *testing.T) {
	ts := newTestServer(t, Config{Options: script.DefaultOptions()})
	container := sampleContainer()

	var decoded DecodeResponse
	require.NoError(t, call(t, ts, "", "Codec.Decode", &DecodeRequest{Data: container}, &decoded))
	assert.Equal(t, []string{"hello"}, decoded.Lines)
	assert.Equal(t, []string{
		"Label Label_0:",
		"Goto Label_0",
		"TextOut 0 0 0 0 hello",
	}, decoded.Listing)
	assert.Equal(t, 2, decoded.Instructions)
	assert.Equal(t, 1, decoded.Labels)
	assert.Len(t, decoded.Metadata, 42)

	var encrypted EncryptResponse
	require.NoError(t, call(t, ts, "", "Codec.Encrypt",
		&EncryptRequest{Lines: decoded.Lines, Metadata: decoded.Metadata}, &encrypted))
	assert.Equal(t, container, encrypted.Data)
}

func TestServer_Decrypt(t *testing.T) {
	ts := newTestServer(t, Config{})
	container := sampleContainer()

	var resp DecryptResponse
	require.NoError(t, call(t, ts, "", "Codec.Decrypt", &DecryptRequest{Data: container}, &resp))
	assert.Equal(t, len(container)-cipher.HeaderSize, resp.Size)
	assert.Equal(t, byte(0x0B), resp.Data[12])
}

func TestServer_Errors(t *testing.T) {
	ts := newTestServer(t, Config{})

	var dec DecryptResponse
	err := call(t, ts, "", "Codec.Decrypt", &DecryptRequest{Data: []byte{1, 2, 3}}, &dec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed container")

	var enc EncryptResponse
	err = call(t, ts, "", "Codec.Encrypt", &EncryptRequest{Lines: []string{"a"}}, &enc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing metadata")
}

func TestServer_DecodePermissiveOverride(t *testing.T) {
	ts := newTestServer(t, Config{Options: script.DefaultOptions()})

	var buf bytes.Buffer
	le := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	le(14)
	le(16)
	le(0)
	buf.Write([]byte{0x01, 0x6A, 0, 0})
	container := cipher.Encrypt(buf.Bytes())

	var resp DecodeResponse
	err := call(t, ts, "", "Codec.Decode", &DecodeRequest{Data: container}, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown opcode")

	permissive := true
	require.NoError(t, call(t, ts, "", "Codec.Decode", &DecodeRequest{Data: container, Permissive: &permissive}, &resp))
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, []string{"AnimeFullOn"}, resp.Listing)
}

func TestServer_Authentication(t *testing.T) {
	server := NewServer(Config{AuthToken: "secret123"})

	// Test without auth token
	req := httptest.NewRequest("POST", "/rpc", nil)
	if server.authenticate(req) {
		t.Error("Expected authentication to fail without token")
	}

	// Test with correct Bearer token
	req.Header.Set("Authorization", "Bearer secret123")
	if !server.authenticate(req) {
		t.Error("Expected authentication to succeed with correct Bearer token")
	}

	// Test with correct direct token
	req.Header.Set("Authorization", "secret123")
	if !server.authenticate(req) {
		t.Error("Expected authentication to succeed with correct direct token")
	}

	// Test with wrong token
	req.Header.Set("Authorization", "wrong-token")
	if server.authenticate(req) {
		t.Error("Expected authentication to fail with wrong token")
	}
}

func TestServer_UnauthorizedCall(t *testing.T) {
	ts := newTestServer(t, Config{AuthToken: "secret123"})

	var resp VersionResponse
	err := call(t, ts, "", "Codec.Version", &VersionRequest{}, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")

	err = call(t, ts, "wrong", "Codec.Decode", &DecodeRequest{Data: sampleContainer()}, &DecodeResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")

	require.NoError(t, call(t, ts, "secret123", "Codec.Version", &VersionRequest{}, &resp))
	assert.Equal(t, "dev", resp.Version)
	assert.Equal(t, script.TableVersion, resp.TableVersion)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, Config{AuthToken: "secret123"})

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer(Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Start server (should stop after timeout)
	err := server.Start(ctx, "0") // Port 0 for random available port
	if err != nil {
		t.Fatalf("Server start failed: %v", err)
	}
}
