package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/sfsynth-go/internal/config"
	"github.com/cbegin/sfsynth-go/internal/sftest"
	"github.com/cbegin/sfsynth-go/internal/soundfont"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content = %v", res.Content)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content %T is not text", res.Content[0])
	}
	return text.Text, res.IsError
}

func fixture(t *testing.T) (dir, bank, song string) {
	t.Helper()
	dir = t.TempDir()
	bank = filepath.Join(dir, "simple.sf2")
	if err := os.WriteFile(bank, sftest.Simple().MustBytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	var tr smf.Track
	tr.Add(0, smf.MetaInstrument("lead"))
	tr.Add(0, midi.NoteOn(0, 69, 100))
	tr.Add(960, midi.NoteOff(0, 69))
	tr.Close(0)
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	song = filepath.Join(dir, "song.mid")
	if err := os.WriteFile(song, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, bank, song
}

func newServer() *Server {
	return New(config.Default(), log.New(io.Discard, "", 0))
}

func TestInfo(t *testing.T) {
	_, bank, _ := fixture(t)
	s := newServer()
	text, isErr := call(t, s.handleInfo, map[string]any{"path": bank})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var info soundfont.BankInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatal(err)
	}
	if info.Name != "simple" || len(info.Presets) != 1 || info.Presets[0].Name != "Sine" {
		t.Fatalf("info = %+v", info)
	}

	if text, isErr := call(t, s.handleInfo, map[string]any{}); !isErr {
		t.Fatalf("missing path accepted: %s", text)
	}
	if _, isErr := call(t, s.handleInfo, map[string]any{"path": filepath.Join(t.TempDir(), "none.sf2")}); !isErr {
		t.Fatal("missing file accepted")
	}
}

func TestPresets(t *testing.T) {
	dir, _, _ := fixture(t)
	text, isErr := call(t, newServer().handlePresets, map[string]any{"dir": dir})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var info map[string]soundfont.BankInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatal(err)
	}
	if _, ok := info["simple.sf2"]; !ok || len(info) != 1 {
		t.Fatalf("info = %v", info)
	}
}

func TestSongInfo(t *testing.T) {
	_, _, song := fixture(t)
	text, isErr := call(t, newServer().handleSongInfo, map[string]any{"path": song})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var info SongInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatal(err)
	}
	if info.Events != 2 || info.Modules["lead"] != 2 || info.Duration != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func TestRender(t *testing.T) {
	_, bank, song := fixture(t)
	out := filepath.Join(t.TempDir(), "out.wav")
	text, isErr := call(t, newServer().handleRender, map[string]any{
		"input":       song,
		"soundfont":   bank,
		"output":      out,
		"sample_rate": 22050,
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	// One second of note, one tail second, half a second of silence.
	if !strings.Contains(text, "55125 frames") {
		t.Fatalf("result = %q", text)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(44 + 55125*4); st.Size() != want {
		t.Fatalf("wav size = %d, want %d", st.Size(), want)
	}

	if text, isErr := call(t, newServer().handleRender, map[string]any{
		"input": song, "soundfont": bank, "output": out, "sample_rate": 10,
	}); !isErr {
		t.Fatalf("bad sample rate accepted: %s", text)
	}
}

func TestMCPBuilds(t *testing.T) {
	if newServer().MCP() == nil {
		t.Fatal("nil server")
	}
}
