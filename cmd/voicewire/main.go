package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/audio"
	"github.com/voicewire/voicewire/internal/client"
)

type deviceAuthRequest struct {
	DeviceID  string `json:"device_id"`
	SecretKey string `json:"secret_key"`
}

type deviceAuthResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

func main() {
	godotenv.Load()

	server := flag.String("server", envOr("VOICEWIRE_SERVER", "http://localhost:8080"), "voicewire server base URL")
	deviceID := flag.String("device", envOr("VOICEWIRE_DEVICE_ID", "voicewire-cli"), "device identifier")
	secret := flag.String("secret", envOr("VOICEWIRE_DEVICE_SECRET", "voicewire-dev"), "device secret key")
	text := flag.String("text", "", "send one typed turn and wait for the reply")
	audioPath := flag.String("audio", "", "stream an audio file as one voice turn")
	outDir := flag.String("out", ".", "directory for received audio responses")
	chunkSize := flag.Int("chunk-size", 4096, "outbound audio chunk size in bytes")
	flag.Parse()

	if *text == "" && *audioPath == "" {
		log.Fatal("nothing to send: provide -text or -audio")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	token, err := authenticateDevice(*server, *deviceID, *secret)
	if err != nil {
		logger.Fatal("Device authentication failed", zap.Error(err))
	}
	logger.Info("Device authenticated", zap.String("deviceID", *deviceID))

	wsURL, err := websocketURL(*server)
	if err != nil {
		logger.Fatal("Invalid server URL", zap.Error(err))
	}

	done := make(chan struct{}, 1)
	c := client.New(
		client.Config{
			URL:       wsURL,
			ChunkSize: *chunkSize,
		},
		client.StaticToken(token),
		&audio.FileSink{Dir: *outDir},
		client.Hooks{
			Turn: func(turn client.Turn) {
				fmt.Printf("[%s/%s] %s\n", turn.Author, turn.Origin, turn.Text)
				if turn.Author == client.AuthorAssistant {
					select {
					case done <- struct{}{}:
					default:
					}
				}
			},
			Status: func(status string) {
				fmt.Printf("... %s\n", status)
			},
			StateChange: func(s client.State) {
				logger.Info("Connection state changed", zap.String("state", string(s)))
			},
			ServerError: func(message string) {
				logger.Warn("Server error", zap.String("message", message))
			},
			TransportError: func(err error) {
				logger.Error("Transport error", zap.Error(err))
			},
		},
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		logger.Fatal("Connect failed", zap.Error(err))
	}
	defer c.Disconnect()

	if *text != "" {
		if err := c.SendText(*text); err != nil {
			logger.Fatal("Send text failed", zap.Error(err))
		}
	}

	if *audioPath != "" {
		chunks, err := audio.ChunkFile(*audioPath, *chunkSize)
		if err != nil {
			logger.Fatal("Read audio file failed", zap.Error(err))
		}
		for _, chunk := range chunks {
			if err := c.SendAudioChunk(chunk); err != nil {
				logger.Fatal("Send audio chunk failed", zap.Error(err))
			}
		}
		if err := c.EndAudioStream(); err != nil {
			logger.Fatal("End audio stream failed", zap.Error(err))
		}
		logger.Info("Audio streamed", zap.Int("chunks", len(chunks)))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
		// Give a trailing audio stream a moment to finish.
		time.Sleep(2 * time.Second)
	case <-interrupt:
		logger.Info("Interrupted")
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for a reply")
	}
}

func authenticateDevice(server, deviceID, secret string) (string, error) {
	body, err := json.Marshal(deviceAuthRequest{DeviceID: deviceID, SecretKey: secret})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(server+"/api/v1/device/auth", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed with status %d", resp.StatusCode)
	}

	var authResp deviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", err
	}
	return authResp.Token, nil
}

func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
