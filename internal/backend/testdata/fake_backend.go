package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tglaunch/pkg/types"
)

// Stand-in for the translation server: serves /health and /translate on
// $PORT, prints the mode marker, and can misbehave on request.
func main() {
	ready := flag.Bool("ready", true, "report model_loaded=true")
	mode := flag.String("mode", "", "mode to print after the marker line")
	ignoreTerm := flag.Bool("ignore-term", false, "ignore SIGTERM")
	healthDelay := flag.Duration("health-delay", 0, "delay before answering /health")
	exitAfter := flag.Duration("exit-after", 0, "exit on its own after this duration")
	flag.Parse()

	sigCh := make(chan os.Signal, 1)
	if *ignoreTerm {
		signal.Ignore(syscall.SIGTERM)
		signal.Notify(sigCh, syscall.SIGINT)
	} else {
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Println("loading model...")
	if *mode != "" {
		fmt.Printf("⚙️ 推論模式: %s\n", *mode)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if *healthDelay > 0 {
			time.Sleep(*healthDelay)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.HealthResponse{Status: "ok", ModelLoaded: *ready})
	})
	mux.HandleFunc("/translate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Text       string `json:"text"`
			SourceLang string `json:"source_lang"`
			TargetLang string `json:"target_lang"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"translation": "[" + req.TargetLang + "] " + req.Text,
			"source_lang": req.SourceLang,
			"target_lang": req.TargetLang,
			"model":       "fake",
		})
	})
	srv := &http.Server{Addr: "127.0.0.1:" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintln(os.Stderr, "server error:", err)
			os.Exit(2)
		}
	}()

	if *exitAfter > 0 {
		time.Sleep(*exitAfter)
		os.Exit(0)
	}
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
