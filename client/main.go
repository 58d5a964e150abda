package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const usage = `Commands:
  create <code> <players>   start a room
  join <code>               join a room
  roll                      roll the dice
  move                      move by the last roll
  place <seat> <square>     debug placement (server must allow it)
  quit`

// state is what the read loop has learned about our game.
type state struct {
	code     string
	seat     int
	lastRoll int
}

func main() {
	addr := flag.String("addr", "localhost:5000", "server host:port")
	key := flag.String("key", "", "public key sent with create/join")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	rolls := make(chan int, 8)
	seats := make(chan int, 8)

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", message)

			var msg struct {
				Type       string `json:"type"`
				DiceValue  int    `json:"diceValue"`
				NumPlayers int    `json:"numPlayers"`
			}
			if err := json.Unmarshal(message, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "dice_roll":
				rolls <- msg.DiceValue
			case "game_joined":
				seats <- msg.NumPlayers - 1
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	log.Println(usage)
	var st state
	for {
		select {
		case <-done:
			return
		case v := <-rolls:
			st.lastRoll = v
		case seat := <-seats:
			st.seat = seat
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			closeConn(c, done)
			return
		case text, ok := <-lines:
			if !ok || text == "quit" {
				closeConn(c, done)
				return
			}
			msg, ok := command(&st, text, *key)
			if !ok {
				log.Println(usage)
				continue
			}
			if err := c.WriteJSON(msg); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %v", msg)
		}
	}
}

// command turns one input line into an outbound message.
func command(st *state, text, key string) (map[string]any, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, false
	}
	switch fields[0] {
	case "create":
		if len(fields) != 3 {
			return nil, false
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, false
		}
		st.code, st.seat = fields[1], 0
		return map[string]any{"type": "init_game", "gameCode": st.code, "numPlayers": n, "publicKey": key}, true
	case "join":
		if len(fields) != 2 {
			return nil, false
		}
		st.code = fields[1]
		return map[string]any{"type": "join_game", "gameCode": st.code, "publicKey": key}, true
	case "roll":
		return map[string]any{"type": "dice_roll", "gameCode": st.code}, true
	case "move":
		return map[string]any{"type": "move_piece", "gameCode": st.code, "player": st.seat, "diceValue": st.lastRoll}, true
	case "place":
		if len(fields) != 3 {
			return nil, false
		}
		seat, err1 := strconv.Atoi(fields[1])
		square, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			return nil, false
		}
		return map[string]any{"type": "move_piece_test", "gameCode": st.code, "player": seat, "position": square}, true
	}
	return nil, false
}

func closeConn(c *websocket.Conn, done chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
