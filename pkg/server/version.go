package server

import "fmt"

const (
	// Version is the server release version.
	Version = "1.0.0"

	// ServerName identifies the software in logs and banners.
	ServerName = "octothorpe-gameserver"
)

// VersionString returns the banner printed at startup.
func VersionString() string {
	return fmt.Sprintf("%s v%s", ServerName, Version)
}
