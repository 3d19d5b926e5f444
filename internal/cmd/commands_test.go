// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dotandev/fewdat/internal/cipher"
	interrors "github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/history"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleContainer holds SoundEffectPlay strings[0] and AnimeFullOn with the
// strings "se_01" and "bgm".
func sampleContainer() []byte {
	var buf bytes.Buffer
	le := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	le(18)
	le(18)
	le(0)
	buf.WriteByte(0x5D)
	le(0)
	buf.WriteByte(0x6A)
	buf.WriteString("se_01\x00bgm\x00")
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return cipher.Encrypt(buf.Bytes())
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setup isolates config, history and colour from the host environment.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "FEWDAT_") {
			t.Setenv(k, "")
		}
	}
	t.Setenv("HOME", dir)
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FEWDAT_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_DecodeThenEncrypt(t *testing.T) {
	dir := setup(t)
	container := sampleContainer()
	in := filepath.Join(dir, "ev01_sce.dat")
	require.NoError(t, os.WriteFile(in, container, 0644))

	out, err := runCLI(t, "decode", in, "-o", filepath.Join(dir, "work"), "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] decode ev01_sce.dat (2 instructions, 2 strings)")
	assert.Contains(t, out, "1 file converted")

	listing, err := os.ReadFile(filepath.Join(dir, "work", "ev01_sce.lst"))
	require.NoError(t, err)
	assert.Equal(t, "SoundEffectPlay se_01\r\nAnimeFullOn\r\n", string(listing))

	out, err = runCLI(t, "encrypt", filepath.Join(dir, "work", "ev01_sce.txt"), "-o", filepath.Join(dir, "patched"), "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] encrypt ev01_sce.txt")

	rebuilt, err := os.ReadFile(filepath.Join(dir, "patched", "ev01_sce.dat"))
	require.NoError(t, err)
	assert.Equal(t, container, rebuilt)
}

func TestCLI_ConvertRecordsHistory(t *testing.T) {
	dir := setup(t)
	good := filepath.Join(dir, "a_sce.dat")
	bad := filepath.Join(dir, "b_sce.dat")
	skip := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(good, sampleContainer(), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(skip, []byte("#"), 0644))

	out, err := runCLI(t, "convert", good, bad, skip, "-o", filepath.Join(dir, "out"), "-j", "2")
	require.Error(t, err)
	assert.Equal(t, "2 of 3 files failed", err.Error())
	assert.Contains(t, out, "[X] b_sce.dat: malformed container")
	assert.Contains(t, out, "[!] notes.md skipped")
	assert.Contains(t, out, "1 file converted, 2 files failed")

	out, err = runCLI(t, "history", "list", "--json")
	require.NoError(t, err)
	var jobs []history.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 2)
	statuses := map[string]string{}
	for _, j := range jobs {
		statuses[filepath.Base(j.Input)] = j.Status
	}
	assert.Equal(t, map[string]string{"a_sce.dat": history.StatusOK, "b_sce.dat": history.StatusFailed}, statuses)

	out, err = runCLI(t, "history", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Removed 2 jobs\n", out)

	out, err = runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Equal(t, "No jobs recorded.\n", out)
}

func TestCLI_EncryptMetadataNeedsSingleInput(t *testing.T) {
	setup(t)
	_, err := runCLI(t, "encrypt", "a_sce.txt", "b_sce.txt", "--metadata", "m.dat")
	assert.True(t, errors.Is(err, interrors.ErrValidation))
}

func TestCLI_OpcodeTableConstraint(t *testing.T) {
	setup(t)
	_, err := runCLI(t, "--config-opcodes", ">= 9.0", "version")
	assert.True(t, errors.Is(err, interrors.ErrIncompatibleOpcodeTable))

	out, err := runCLI(t, "--config-opcodes", ">= 1.0", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "opcode table "+script.TableVersion)
}

func TestCLI_Opcodes(t *testing.T) {
	setup(t)
	out, err := runCLI(t, "opcodes")
	require.NoError(t, err)
	assert.Contains(t, out, "OPCODE")
	assert.Regexp(t, `0x0B\s+Goto\s+branch`, out)
	assert.Regexp(t, `0x8E\s+TextOut\s+strparam`, out)
}

func TestCLI_CrashReportingOptIn(t *testing.T) {
	setup(t)
	_, err := runCLI(t, "version")
	require.NoError(t, err)
	require.NotNil(t, crashReporter)
	assert.False(t, crashReporter.IsEnabled())
	assert.Equal(t, "fewdat version", activeCommand)

	t.Setenv("FEWDAT_CRASH_REPORTING", "1")
	t.Setenv("FEWDAT_CRASH_ENDPOINT", "https://crash.example.com/v1")
	_, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, crashReporter.IsEnabled())

	t.Setenv("FEWDAT_CRASH_ENDPOINT", "http://crash.example.com")
	_, err = runCLI(t, "version")
	assert.True(t, errors.Is(err, interrors.ErrValidation))
}

func TestCLI_Profile(t *testing.T) {
	dir := setup(t)
	in := filepath.Join(dir, "ev01_sce.dat")
	require.NoError(t, os.WriteFile(in, sampleContainer(), 0o644))

	out, err := runCLI(t, "profile", in)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 instructions)")
	info, err := os.Stat(filepath.Join(dir, "ev01_sce.pb.gz"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	txt := filepath.Join(dir, "ev01_sce.txt")
	require.NoError(t, os.WriteFile(txt, []byte("se_01\r\n"), 0o644))
	_, err = runCLI(t, "profile", txt)
	assert.True(t, errors.Is(err, interrors.ErrValidation))
}
