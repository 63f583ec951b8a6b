// Command wsprobe is a manual smoke client: it connects, identifies, joins a
// room, optionally sends one message and prints every event it receives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
	token := flag.String("token", "", "auth token for identify")
	userID := flag.Int64("user", 0, "raw user id for identify (dev mode)")
	room := flag.Int64("room", 0, "room to join")
	text := flag.String("send", "", "message body to send after joining")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, _, err := websocket.Dial(ctx, *url, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(msgType string, data any) {
		if err := wsjson.Write(ctx, conn, envelope{Type: msgType, Data: data}); err != nil {
			log.Fatalf("write %s: %v", msgType, err)
		}
	}

	send("identify", map[string]any{"token": *token, "user_id": *userID})
	if *room != 0 {
		send("join_room", map[string]any{"room_id": *room})
	}
	if *text != "" && *room != 0 {
		send("send_message", map[string]any{"room_id": *room, "body": *text})
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			log.Printf("read: %v", err)
			return
		}
		fmt.Println(string(raw))
	}
}
