package main

import (
	"fmt"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/internal/config"
)

type devices struct {
	input  audio.Input
	output audio.Output
	close  func()
}

func openDevices(backend string, frameSize int) (devices, error) {
	switch backend {
	case config.BackendMiniaudio, "":
		client, err := miniaudio.NewClient(miniaudio.WithFrameSize(frameSize))
		if err != nil {
			return devices{}, err
		}
		return devices{input: client.Input(), output: client.Output(), close: client.Close}, nil

	case config.BackendPortaudio:
		client, err := portaudio.NewClient(frameSize)
		if err != nil {
			return devices{}, err
		}
		return devices{input: client.Input(), output: client.Output(), close: client.Close}, nil

	default:
		return devices{}, fmt.Errorf("unknown audio backend %q", backend)
	}
}
