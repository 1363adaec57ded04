// Command perfcompanion replays recordings against a running server's
// companion websocket and reports per-turn latency.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/ent0n29/speakwell/internal/audio"
	"github.com/ent0n29/speakwell/internal/protocol"
)

type options struct {
	baseURL        string
	email          string
	password       string
	audioPath      string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	cleanup        bool
	verbose        bool
}

type wsEnvelope struct {
	Type          string `json:"type"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
	Transcript    string `json:"transcript,omitempty"`
	ResponseText  string `json:"response_text,omitempty"`
	AudioFilename string `json:"audio_filename,omitempty"`
}

type latencySummary struct {
	Turns int
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfcompanion: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfcompanion: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	fs := pflag.NewFlagSet("perfcompanion", pflag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "server base URL")
	fs.StringVar(&cfg.email, "email", "coach@example.com", "account used to sign in")
	fs.StringVar(&cfg.password, "password", "practice123", "password for --email")
	fs.StringVar(&cfg.audioPath, "audio", "", "recording to replay (default: a generated 1s tone)")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to replay")
	fs.DurationVar(&cfg.interTurnDelay, "inter-turn", 200*time.Millisecond, "delay between turns")
	fs.DurationVar(&cfg.turnTimeout, "turn-timeout", 30*time.Second, "timeout waiting for each reply")
	fs.BoolVar(&cfg.cleanup, "cleanup", true, "delete each reply file after it arrives")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.turnTimeout < time.Second {
		cfg.turnTimeout = time.Second
	}
	if cfg.interTurnDelay < 0 {
		cfg.interTurnDelay = 0
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	clip, err := loadClip(cfg.audioPath)
	if err != nil {
		return fmt.Errorf("prepare recording: %w", err)
	}

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: 45 * time.Second, Jar: jar}
	if err := login(ctx, httpClient, cfg); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	wsURL, err := companionWSURL(cfg.baseURL)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	base, _ := url.Parse(cfg.baseURL)
	header := http.Header{}
	for _, c := range jar.Cookies(base) {
		header.Add("Cookie", c.String())
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	if _, err := readFrame(conn, cfg.turnTimeout); err != nil {
		return fmt.Errorf("await ready: %w", err)
	}
	if cfg.verbose {
		fmt.Printf("perfcompanion: turns=%d bytes=%d\n", cfg.turns, len(clip))
	}

	latencies := make([]time.Duration, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		started := time.Now()
		if err := conn.WriteMessage(websocket.BinaryMessage, clip); err != nil {
			return fmt.Errorf("turn %d send audio: %w", i+1, err)
		}
		reply, err := awaitReply(conn, cfg.turnTimeout)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		elapsed := time.Since(started)
		latencies = append(latencies, elapsed)
		if cfg.verbose {
			fmt.Printf("perfcompanion: turn %d/%d %s transcript=%q reply=%q\n", i+1, cfg.turns, elapsed.Round(time.Millisecond), reply.Transcript, reply.ResponseText)
		}

		if cfg.cleanup && reply.AudioFilename != "" {
			ctl := protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionCleanup, Filename: reply.AudioFilename}
			if err := conn.WriteJSON(ctl); err != nil {
				return fmt.Errorf("turn %d cleanup: %w", i+1, err)
			}
			if _, err := readFrame(conn, cfg.turnTimeout); err != nil {
				return fmt.Errorf("turn %d cleanup ack: %w", i+1, err)
			}
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	s := summarize(latencies)
	fmt.Printf("perfcompanion: turns=%d p50=%s p95=%s max=%s mean=%s\n", s.Turns,
		s.P50.Round(time.Millisecond), s.P95.Round(time.Millisecond), s.Max.Round(time.Millisecond), s.Mean.Round(time.Millisecond))
	return nil
}

func login(ctx context.Context, client *http.Client, cfg options) error {
	payload, err := json.Marshal(map[string]string{"email": cfg.email, "password": cfg.password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func awaitReply(conn *websocket.Conn, timeout time.Duration) (wsEnvelope, error) {
	for {
		msg, err := readFrame(conn, timeout)
		if err != nil {
			return wsEnvelope{}, err
		}
		switch protocol.MessageType(msg.Type) {
		case protocol.TypeCompanionReply:
			return msg, nil
		case protocol.TypeErrorEvent:
			return wsEnvelope{}, fmt.Errorf("server error %s: %s", msg.Code, msg.Error)
		}
	}
}

func readFrame(conn *websocket.Conn, timeout time.Duration) (wsEnvelope, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var msg wsEnvelope
	if err := conn.ReadJSON(&msg); err != nil {
		return wsEnvelope{}, err
	}
	return msg, nil
}

func companionWSURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/aicompanion/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// loadClip reads path, or renders a one second 440 Hz tone as WAV.
func loadClip(path string) ([]byte, error) {
	if strings.TrimSpace(path) != "" {
		return os.ReadFile(path)
	}
	dir, err := os.MkdirTemp("", "perfcompanion-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	samples := make([]int, audio.TargetSampleRate)
	for i := range samples {
		samples[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.TargetSampleRate)))
	}
	tone := filepath.Join(dir, "tone.wav")
	if err := audio.WriteWAVFile(tone, samples, audio.TargetSampleRate); err != nil {
		return nil, err
	}
	return os.ReadFile(tone)
}

func summarize(latencies []time.Duration) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return latencySummary{
		Turns: len(sorted),
		P50:   nearestRank(sorted, 0.50),
		P95:   nearestRank(sorted, 0.95),
		Max:   sorted[len(sorted)-1],
		Mean:  total / time.Duration(len(sorted)),
	}
}

func nearestRank(sorted []time.Duration, q float64) time.Duration {
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
