package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var model, vae, encoder, host, port, device, dtype string
	var exitEarly, ignoreTerm bool
	var readyDelay time.Duration
	// Accept the flags the worker backend passes.
	flag.StringVar(&model, "model", "", "model path")
	flag.StringVar(&vae, "vae", "", "vae path")
	flag.StringVar(&encoder, "encoder", "", "encoder id")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.StringVar(&device, "device", "", "device")
	flag.StringVar(&dtype, "dtype", "", "dtype")
	flag.BoolVar(&exitEarly, "exit-early", false, "fail before becoming ready")
	flag.BoolVar(&ignoreTerm, "ignore-term", false, "ignore SIGTERM")
	flag.DurationVar(&readyDelay, "ready-delay", 0, "delay before /healthz succeeds")
	flag.Parse()

	if exitEarly {
		fmt.Fprintln(os.Stderr, "fake worker: cannot load weights")
		os.Exit(3)
	}
	readyAt := time.Now().Add(readyDelay)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if time.Now().Before(readyAt) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("X-Model", model)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt    string `json:"prompt"`
			ImageSize int    `json:"image_size"`
			Seed      int64  `json:"seed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Prompt == "fail" {
			http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, 16, 16))
		for i := range img.Pix {
			img.Pix[i] = byte(req.Seed)
		}
		img.Set(0, 0, color.RGBA{255, 0, 0, 255})
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Model", model)
		_, _ = w.Write(buf.Bytes())
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	for range sigCh {
		if ignoreTerm {
			continue
		}
		break
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
