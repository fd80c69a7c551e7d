// Command ema-live runs a voice conversation with the pantry assistant in
// the terminal.
package main

import (
	"context"
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	live "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport/gemini"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/koscakluka/ema-live/internal/inventory"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.AudioBackend, "backend", cfg.AudioBackend, "audio backend: miniaudio or portaudio")
	flag.StringVar(&cfg.InventoryFile, "inventory", cfg.InventoryFile, "JSON file with the pantry inventory")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "Gemini Live model")
	flag.StringVar(&cfg.Voice, "voice", cfg.Voice, "prebuilt voice name")
	flag.Parse()

	if cfg.APIKey() == "" {
		log.Println("Warning: GEMINI_API_KEY not set - sessions will fail to connect")
	}

	items, err := inventory.Load(cfg.InventoryFile)
	if err != nil {
		log.Fatalf("Failed to load inventory: %v", err)
	}

	devices, err := openDevices(cfg.AudioBackend, cfg.FrameSize)
	if err != nil {
		log.Fatalf("Failed to open audio devices: %v", err)
	}
	defer devices.close()

	client := gemini.NewClient(cfg.APIKey(), gemini.WithModel(cfg.Model))

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	manager := live.NewManager(devices.input, devices.output, client,
		live.WithInventorySummary(inventory.Summary(items)),
		live.WithVoice(cfg.Voice),
		live.WithOpenCallback(func(sessionID string) { send(openedMsg(sessionID)) }),
		live.WithStatusCallback(func(text string) { send(statusMsg(text)) }),
		live.WithSpeakingCallback(func(speaking bool) { send(speakingMsg(speaking)) }),
		live.WithTranscriptCallback(func(speaker events.Speaker, text string) {
			send(transcriptMsg{speaker: speaker, text: text})
		}),
		live.WithErrorCallback(func(message string) { send(errorMsg(message)) }),
		live.WithTurnCompleteCallback(func() { send(turnCompleteMsg{}) }),
	)

	program = tea.NewProgram(newModel(context.Background(), manager, client.Model()), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("Failed to run terminal UI: %v", err)
	}
}
