// Package mcpserver exposes bank inspection and song rendering as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	sfsynth "github.com/cbegin/sfsynth-go"
	"github.com/cbegin/sfsynth-go/internal/config"
	"github.com/cbegin/sfsynth-go/internal/soundfont"
)

const (
	Name    = "sfsynth MCP"
	Version = "1.0.0"
)

// Server holds the render settings shared by all tool calls.
type Server struct {
	cfg    config.Config
	logger *log.Logger
}

func New(cfg config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// MCP builds the MCP server with every tool registered.
func (s *Server) MCP() *server.MCPServer {
	m := server.NewMCPServer(Name, Version, server.WithToolCapabilities(false))

	m.AddTool(mcp.NewTool("sf2_info",
		mcp.WithDescription("Returns the file info and preset list of an SF2 SoundFont as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the .sf2 file.")),
	), s.handleInfo)

	m.AddTool(mcp.NewTool("sf2_presets",
		mcp.WithDescription("Returns the info of every .sf2 file in a directory as JSON, keyed by file name."),
		mcp.WithString("dir", mcp.Required(), mcp.Description("Directory holding .sf2 files.")),
	), s.handlePresets)

	m.AddTool(mcp.NewTool("smf_info",
		mcp.WithDescription("Summarizes a standard MIDI file: duration, event count and instrument routing."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the .mid file.")),
	), s.handleSongInfo)

	m.AddTool(mcp.NewTool("smf_render",
		mcp.WithDescription("Renders a standard MIDI file to a 16-bit stereo WAV file."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Path of the .mid file.")),
		mcp.WithString("soundfont", mcp.Required(), mcp.Description("Default .sf2 bank.")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the .wav file to write.")),
		mcp.WithString("dir", mcp.Description("Directory of banks selected by MIDI instrument name.")),
		mcp.WithNumber("sample_rate", mcp.Description("Output sample rate in Hz.")),
	), s.handleRender)

	return m
}

// Serve runs the server on stdio until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Println("[mcp] starting server on stdio")
	return server.ServeStdio(s.MCP())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Println("[mcp] sf2_info", path)
	b, err := soundfont.LoadFile(path, soundfont.WithLogger(s.logger))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b.Summary())
}

func (s *Server) handlePresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, err := request.RequireString("dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Println("[mcp] sf2_presets", dir)
	info, err := sfsynth.DirectoryInfo(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

// SongInfo is the smf_info result.
type SongInfo struct {
	Duration float64        `json:"duration_seconds"`
	Events   int            `json:"events"`
	Modules  map[string]int `json:"modules"`
}

func (s *Server) handleSongInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Println("[mcp] smf_info", path)
	song, err := sfsynth.LoadSong(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info := SongInfo{
		Duration: song.Duration().Seconds(),
		Events:   len(song.Events),
		Modules:  map[string]int{},
	}
	for _, ev := range song.Events {
		info.Modules[ev.Module]++
	}
	return jsonResult(info)
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := request.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bank, err := request.RequireString("soundfont")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg := s.cfg
	cfg.SampleRate = request.GetInt("sample_rate", cfg.SampleRate)
	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dir := request.GetString("dir", "")
	s.logger.Println("[mcp] smf_render", input, "->", output)

	start := time.Now()
	lib := sfsynth.NewLibrary(bank, dir, s.logger)
	samples, err := sfsynth.RenderFile(ctx, input, lib, sfsynth.WithConfig(cfg))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sfsynth.WriteWAVFile(output, samples, cfg.SampleRate); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", output, err)
	}
	frames := len(samples) / 2
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %s: %d frames, %.2f s at %d Hz (rendered in %v).",
		filepath.Base(output), frames, float64(frames)/float64(cfg.SampleRate), cfg.SampleRate,
		time.Since(start).Round(time.Millisecond))), nil
}
