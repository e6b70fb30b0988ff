package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelspawn.ai/internal/protocol"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "bot", "actor name")
		every       = flag.Duration("every", 7*time.Second, "interval between SPAWN requests")
		respawnRate = flag.Float64("respawn_rate", 0.2, "chance per interval of sending a RESPAWN instead")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ActorName:       *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	inbox := make(chan []byte, 16)
	go func() {
		defer close(inbox)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			inbox <- msg
		}
	}()

	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return

		case msg, ok := <-inbox:
			if !ok {
				return
			}
			handle(logger, msg)

		case <-ticker.C:
			if rand.Float64() < *respawnRate {
				bed := rand.IntN(2) == 0
				_ = conn.WriteJSON(protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version, BedSpawn: bed})
				logger.Printf("RESPAWN bed=%v", bed)
				continue
			}
			_ = conn.WriteJSON(protocol.SpawnMsg{Type: protocol.TypeSpawn, ProtocolVersion: protocol.Version, RequestID: uuid.NewString()})
		}
	}
}

func handle(logger *log.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		logger.Printf("WELCOME actor_id=%s world=%s first_join=%v radius=%d cooldown=%ds",
			w.ActorID, w.World, w.FirstJoin, w.SpawnParams.Radius, w.SpawnParams.CooldownSeconds)

	case protocol.TypeSpawnResult:
		var r protocol.SpawnResultMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return
		}
		if r.OK {
			logger.Printf("SPAWN_RESULT cause=%s pos=%.1f,%.1f,%.1f", r.Cause, r.Pos[0], r.Pos[1], r.Pos[2])
		} else {
			logger.Printf("SPAWN_RESULT cause=%s failed: %s", r.Cause, r.Message)
		}

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return
		}
		logger.Printf("ERROR code=%s msg=%s", e.Code, e.Message)
	}
}
