// Package main provides a deliberately unreliable server for testing the
// watchdog. Its health endpoint can be told to fail the next N probes,
// useful for watching a target trip and recover end to end.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

func main() {
	port := flag.Int("port", 3001, "port to listen on")
	name := flag.String("name", "flakyd", "service name")
	flag.Parse()

	if p := os.Getenv("PORT"); p != "" {
		fmt.Sscanf(p, "%d", port)
	}

	var mu sync.Mutex
	failuresLeft := 0

	// /__fail/{n} arms the next n health checks to fail.
	// Example: POST /__fail/5 → the next five /healthz probes return 503.
	http.HandleFunc("/__fail/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/__fail/"))
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		failuresLeft = n
		mu.Unlock()
		log.Printf("armed %d failures", n)
		writeState(w, *name, n)
	})

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		failing := failuresLeft > 0
		if failing {
			failuresLeft--
		}
		remaining := failuresLeft
		mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"service":       *name,
				"status":        "failing",
				"failures_left": remaining,
				"timestamp":     time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		writeState(w, *name, remaining)
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeState(w, *name, -1)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("%s listening on %s", *name, addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func writeState(w http.ResponseWriter, name string, failuresLeft int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := map[string]interface{}{
		"service":   name,
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if failuresLeft >= 0 {
		resp["failures_left"] = failuresLeft
	}
	json.NewEncoder(w).Encode(resp)
}
