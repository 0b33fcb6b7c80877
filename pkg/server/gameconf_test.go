package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGameConf(t *testing.T) {
	gc := DefaultGameConf()
	if gc.Port != 8001 {
		t.Errorf("Port = %d, want 8001", gc.Port)
	}
	if gc.NumTreasures != 15 || gc.TreasureMinSep != 3 || gc.FOWRadius != 5 {
		t.Errorf("game rules = (%d, %v, %v), want (15, 3, 5)",
			gc.NumTreasures, gc.TreasureMinSep, gc.FOWRadius)
	}
}

func TestLoadGameConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	conf := `
server_name: testserver
port: 9999
num_treasures: 3
web_enabled: true
`
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}

	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatalf("LoadGameConf: %v", err)
	}
	if gc.ServerName != "testserver" || gc.Port != 9999 || gc.NumTreasures != 3 {
		t.Errorf("loaded conf = %+v", gc)
	}
	if !gc.WebEnabled {
		t.Error("WebEnabled not set")
	}
	// Unset keys keep their defaults.
	if gc.FOWRadius != 5 {
		t.Errorf("FOWRadius = %v, want default 5", gc.FOWRadius)
	}
	if gc.WebPort != 8080 {
		t.Errorf("WebPort = %d, want default 8080", gc.WebPort)
	}
}

func TestLoadGameConfMissing(t *testing.T) {
	if _, err := LoadGameConf(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
