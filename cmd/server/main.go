package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cgif-games/octothorpe/pkg/boltstore"
	"github.com/cgif-games/octothorpe/pkg/server"
	"github.com/cgif-games/octothorpe/pkg/users"
	"github.com/cgif-games/octothorpe/pkg/world"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("OCTO_CONF", ""), "Path to game config file (env: OCTO_CONF)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: OCTO_PORT)")
	mapFile := flag.String("map", envDefault("OCTO_MAP", ""), "Path to map file (env: OCTO_MAP)")
	userFile := flag.String("users", envDefault("OCTO_USERS", ""), "Path to JSON user file (env: OCTO_USERS)")
	boltFile := flag.String("bolt", envDefault("OCTO_BOLT", ""), "Path to bbolt user database, overrides -users (env: OCTO_BOLT)")
	textDir := flag.String("textdir", envDefault("OCTO_TEXTDIR", ""), "Path to text files directory (env: OCTO_TEXTDIR)")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())

	// Handle OCTO_PORT env if -port flag not set
	if *port == 0 {
		if envPort := os.Getenv("OCTO_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}

	// Load game config if specified, otherwise use defaults
	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}

	// Command-line flags override config file values
	if *port != 0 {
		gc.Port = *port
	}
	if *mapFile != "" {
		gc.MapFile = *mapFile
	}
	if *userFile != "" {
		gc.UserFile = *userFile
	}
	if *boltFile != "" {
		gc.BoltFile = *boltFile
	}
	if *textDir != "" {
		gc.TextDir = *textDir
	}

	w, err := world.Load(gc.MapFile)
	if err != nil {
		log.Fatalf("Error loading map: %v", err)
	}
	rows, cols := w.Size()
	log.Printf("Loaded map %s (%dx%d), spawn at %v", gc.MapFile, rows, cols, w.Spawn())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := w.GenerateTreasures(gc.NumTreasures, gc.TreasureMinSep, rng); err != nil {
		log.Fatalf("Error placing treasures: %v", err)
	}
	log.Printf("Placed %d treasures (min separation %v)", w.Count(), gc.TreasureMinSep)

	// bbolt takes priority over the JSON file when both are configured.
	var store users.Store
	if gc.BoltFile != "" {
		bs, err := boltstore.Open(gc.BoltFile)
		if err != nil {
			log.Fatalf("Error opening bolt database: %v", err)
		}
		log.Printf("User store: bbolt %s", gc.BoltFile)
		store = bs
	} else {
		log.Printf("User store: JSON %s", gc.UserFile)
		store = users.NewJSONStore(gc.UserFile)
	}
	defer store.Close()

	reg, err := users.NewRegistry(store, w.Spawn())
	if err != nil {
		log.Fatalf("Error loading user registry: %v", err)
	}
	if gc.SaveInterval > 0 {
		reg.StartAutoSave(time.Duration(gc.SaveInterval) * time.Second)
	}

	game := server.NewGame(gc, w, reg)

	if gc.TextDir != "" {
		game.Texts = server.LoadTextFiles(gc.TextDir)
		game.Texts.Watch()
	}

	srv := server.NewServer(game)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("Received %v, shutting down", s)
		reg.StopAutoSave()
		srv.Stop()
	}()

	log.Printf("Starting %s on port %d...", gc.ServerName, gc.Port)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Server stopped")
}
