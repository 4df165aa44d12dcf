package serialmux

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/autopark/internal/httputil"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var consoleTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

type boardConsole interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
	Status() BoardStatus
}

func attachAdminRoutes(mux *http.ServeMux, b boardConsole) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "Robot board console", func(w http.ResponseWriter, r *http.Request) {
		if err := consoleTemplate.Execute(w, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})
	debug.Handle("board", "Robot board status (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, b.Status())
	}))
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		handleSendCommand(w, r, b)
	})
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		handleTail(w, r, b)
	})
	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		io.Copy(w, f)
	})
}

// handleSendCommand forwards one protocol command typed into the console.
func handleSendCommand(w http.ResponseWriter, r *http.Request, b boardConsole) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	switch {
	case command == "":
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	case !KnownCommand(command):
		http.Error(w, fmt.Sprintf("Unknown board command %q", command), http.StatusBadRequest)
		return
	}
	if err := b.SendCommand(command); err != nil {
		http.Error(w, "Failed to write command", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "Wrote command %q to serial port", command)
}

// handleTail streams board lines as server-sent events until the client
// goes away or the mux closes.
func handleTail(w http.ResponseWriter, r *http.Request, b boardConsole) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, lines := b.Subscribe()
	defer b.Unsubscribe(id)

	io.WriteString(w, ": ping\n\n")
	flusher.Flush()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ClassifyPayload(line), line); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
