package server

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TextFiles caches the text served at session lifecycle points. All
// fields are optional; empty strings fall back to the built-in messages.
type TextFiles struct {
	mu      sync.RWMutex
	dir     string
	welcome string // welcome.txt — shown on connect, before the greeting
	motd    string // motd.txt — shown after a successful login
	quit    string // quit.txt — shown instead of the default farewell
}

var trackedTextFiles = []string{"welcome.txt", "motd.txt", "quit.txt"}

// GetWelcome returns the connect banner.
func (tf *TextFiles) GetWelcome() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.welcome }

// GetMotd returns the post-login message of the day.
func (tf *TextFiles) GetMotd() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.motd }

// GetQuit returns the farewell message.
func (tf *TextFiles) GetQuit() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.quit }

// LoadTextFiles reads the lifecycle texts from dir. Missing files yield
// empty strings, not errors.
func LoadTextFiles(dir string) *TextFiles {
	tf := &TextFiles{dir: dir}
	tf.loadAll()
	return tf
}

func loadTextFile(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

func (tf *TextFiles) loadAll() {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.welcome = loadTextFile(tf.dir, "welcome.txt")
	tf.motd = loadTextFile(tf.dir, "motd.txt")
	tf.quit = loadTextFile(tf.dir, "quit.txt")
}

// Watch starts an fsnotify watcher on the text directory and reloads the
// cache whenever a tracked file changes on disk.
func (tf *TextFiles) Watch() {
	if tf.dir == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: could not start text file watcher: %v", err)
		return
	}

	tracked := make(map[string]bool)
	for _, name := range trackedTextFiles {
		tracked[name] = true
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !tracked[filepath.Base(event.Name)] {
					continue
				}
				log.Printf("Text file changed, reloading: %s", filepath.Base(event.Name))
				tf.loadAll()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Text file watcher error: %v", err)
			}
		}
	}()

	if err := watcher.Add(tf.dir); err != nil {
		log.Printf("WARNING: could not watch text directory %s: %v", tf.dir, err)
		watcher.Close()
		return
	}
	log.Printf("Watching text directory for changes: %s", tf.dir)
}
