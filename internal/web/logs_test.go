package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLogBuffer_JoinsPartialWrites(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("first li"))
	_, _ = b.Write([]byte("ne\nsecond\n\nthird"))

	lines, dropped := b.Snapshot(0)
	if dropped != 0 {
		t.Fatalf("dropped=%d", dropped)
	}
	if len(lines) != 2 || lines[0] != "first line" || lines[1] != "second" {
		t.Fatalf("lines=%q", lines)
	}

	_, _ = b.Write([]byte("\r\n"))
	lines, _ = b.Snapshot(0)
	if len(lines) != 3 || lines[2] != "third" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_DropsOldest(t *testing.T) {
	b := NewLogBuffer(2)
	_, _ = b.Write([]byte("a\nb\nc\n"))
	lines, dropped := b.Snapshot(5)
	if dropped != 1 || len(lines) != 2 || lines[0] != "b" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
}

func TestLogBuffer_CapturesLogrus(t *testing.T) {
	b := NewLogBuffer(10)
	logger := logrus.New()
	logger.SetOutput(b)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	logger.WithField("mode", "hovering").Info("mode change")

	lines, _ := b.Snapshot(1)
	if len(lines) != 1 || !strings.Contains(lines[0], `msg="mode change"`) || !strings.Contains(lines[0], "mode=hovering") {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_Handler(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("one\ntwo\nthree\n"))
	ts := httptest.NewServer(b.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "?tail=2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var out LogsResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Lines) != 2 || out.Lines[1] != "three" {
		t.Fatalf("lines=%q", out.Lines)
	}

	resp, err = http.Get(ts.URL + "?format=text&tail=1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "three\n" {
		t.Fatalf("body=%q", body)
	}

	resp, err = http.Get(ts.URL + "?tail=0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}
