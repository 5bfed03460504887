package main

import (
	"encoding/json"
	"log"
	"strconv"
	"sync/atomic"
)

// Toast represents a notification message to show to the moderator
type Toast struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "error", "warning", "success", "info"
	Message string `json:"message"`
}

var toastCounter atomic.Int64

func newToast(toastType, message string) Toast {
	return Toast{ID: strconv.FormatInt(toastCounter.Add(1), 10), Type: toastType, Message: message}
}

// renderToast renders a toast envelope as JSON
func renderToast(toastType, message string) []byte {
	t := newToast(toastType, message)
	data, err := json.Marshal(WSEnvelope{Type: "toast", Toast: &t})
	if err != nil {
		log.Printf("Failed to render toast: %v", err)
		return nil
	}
	return data
}

// sendErrorToast sends an error toast to the consoles of one session
func (s *server) sendErrorToast(session, message string) {
	if data := renderToast("error", message); data != nil {
		s.hub.sendToSession(session, data)
	}
}
