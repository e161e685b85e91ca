// Package config provides functionality for managing configuration options
// for the application using command-line flags and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string

	// DataDir is the directory holding sessions, photos and subscriptions
	// on the server, and the offline queue on the client.
	DataDir string

	// WebRoot is the directory the server serves static pages from.
	WebRoot string

	// GatewayAddr is the client gateway's listening address (ip:port).
	GatewayAddr string

	// ServerURL is the base URL of the remote server, as seen by the client.
	ServerURL string

	// CacheName is the active cache generation name. Changing it forces a
	// full cache cutover on the next activation.
	CacheName string

	// NetworkTimeoutSec bounds every network call made by the gateway and
	// the drainer, in seconds.
	NetworkTimeoutSec int

	// VapidPublicKey and VapidPrivateKey configure web push. Read from the
	// environment only; push is disabled when unset.
	VapidPublicKey  string `json:"-"`
	VapidPrivateKey string `json:"-"`

	// Config is the path to the Config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:3000", "run on ip:port server")
	flag.StringVar(&options.DataDir, "d", "data", "data directory")
	flag.StringVar(&options.WebRoot, "w", "web", "static web root")
	flag.StringVar(&options.GatewayAddr, "g", "localhost:8090", "client gateway ip:port")
	flag.StringVar(&options.ServerURL, "url", "http://localhost:3000", "server base URL")
	flag.StringVar(&options.CacheName, "cache", "puppy-yoga-cache-v8", "cache generation name")
	flag.IntVar(&options.NetworkTimeoutSec, "t", 10, "network timeout in seconds")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Addr = serverAddress
	}
	if serverURL := os.Getenv("SERVER_URL"); serverURL != "" {
		options.ServerURL = serverURL
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		options.DataDir = dataDir
	}

	options.VapidPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	options.VapidPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")

	return options
}

// NetworkTimeout returns the configured network timeout as a duration.
func (o *Options) NetworkTimeout() time.Duration {
	return time.Duration(o.NetworkTimeoutSec) * time.Second
}
