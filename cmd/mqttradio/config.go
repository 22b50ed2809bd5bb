// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config mirrors the command line flags so deployments can keep their settings in a
// JSON file instead of an init script full of flags.
type Config struct {
	Mqtt   string        `json:"mqtt"`   // host:port of the MQTT broker
	CsPin  string        `json:"cspin"`  // chip select mux pin, empty for one radio
	Radios []radioConfig `json:"radios"` // one or two radios
}

// loadConfig reads and parses a JSON config file.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %s", path, err)
	}
	if len(c.Radios) < 1 || len(c.Radios) > 2 {
		return nil, fmt.Errorf("%s: need 1 or 2 radios, got %d", path, len(c.Radios))
	}
	if len(c.Radios) == 2 && c.CsPin == "" {
		return nil, fmt.Errorf("%s: two radios need a cspin to mux the SPI bus", path)
	}
	return &c, nil
}
