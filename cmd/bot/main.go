package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/voxel"
)

// bot builds a fueled controller with a stocked chest and an import
// interface over the control websocket, publishes one import request and then
// keeps polling how much of it is still outstanding.
func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "control ws url")
		configDir = flag.String("configs", "./configs", "config directory")
		actor     = flag.String("actor", "bot", "actor id")
		x         = flag.Int("x", 0, "controller x")
		y         = flag.Int("y", 64, "controller y")
		z         = flag.Int("z", 0, "controller z")
		item      = flag.String("item", "COAL", "item to stock and request")
		count     = flag.Int("count", 64, "import request size")
		poll      = flag.Duration("poll", 2*time.Second, "REQUESTED_COUNT poll interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	origin := voxel.V(*x, *y, *z)
	cmds, err := buildScript(cats, origin, *actor, *item, *count)
	if err != nil {
		logger.Fatalf("script: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, cmd := range cmds {
		res, err := roundTrip(conn, cmd)
		if err != nil {
			logger.Fatalf("%s: %v", cmd.Op, err)
		}
		if !res.OK {
			logger.Fatalf("%s rejected at tick %d: %s %s", cmd.Op, res.Tick, res.Code, res.Message)
		}
		if cmd.Op == protocol.OpPublish {
			logger.Printf("published request=%s count=%d tick=%d", res.RequestID, res.Count, res.Tick)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	t := time.NewTicker(*poll)
	defer t.Stop()
	q := pendingQuery(origin, *item)
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		res, err := roundTrip(conn, q)
		if err != nil {
			logger.Printf("poll: %v", err)
			return
		}
		logger.Printf("tick=%d outstanding %s=%d", res.Tick, *item, res.Count)
		if res.OK && res.Count == 0 {
			logger.Printf("request fulfilled")
			return
		}
	}
}

func roundTrip(conn *websocket.Conn, cmd protocol.CommandMsg) (protocol.CommandResultMsg, error) {
	var res protocol.CommandResultMsg
	if err := conn.WriteJSON(cmd); err != nil {
		return res, err
	}
	err := conn.ReadJSON(&res)
	return res, err
}
