package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Config represents the MTC reader configuration
type Config struct {
	filename string

	// Network section
	address string
	port    uint32

	// Reader section
	mtcOnly       bool
	autoFramerate bool
	framerate     uint32

	// Freewheel section
	freewheelEnabled   bool
	freewheelTolerance uint32 // milliseconds
	freewheelFrames    uint32

	// Heartbeat section
	heartbeatEnabled  bool
	heartbeatInterval uint32 // milliseconds

	// Relay section
	relayEnabled bool
	relayAddress string
	relayPort    uint32

	// Journal section
	journalEnabled       bool
	journalPath          string
	journalBatchSize     uint32
	journalFlushInterval uint32 // milliseconds
	journalRetention     uint32 // hours, 0 keeps everything

	// Metrics section
	metricsEnabled bool
	metricsAddress string

	// Log section
	logDebug    bool
	logFilePath string
}

// NewConfig creates a new configuration instance with defaults
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,

		port:               5005,
		framerate:          30,
		freewheelTolerance: 5,
		freewheelFrames:    30,
		heartbeatInterval:  1000,
		relayPort:          5006,

		journalPath:          "data/timecode.db",
		journalBatchSize:     100,
		journalFlushInterval: 1000,

		metricsAddress: ":9105",
	}
}

// Load loads configuration from the file given to NewConfig
func (c *Config) Load() error {
	file, err := os.Open(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", c.filename, err)
	}
	defer file.Close()

	if err := c.parseINIScanner(bufio.NewScanner(file)); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", c.filename, err)
	}
	return c.Validate()
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	if err := c.parseINIScanner(bufio.NewScanner(strings.NewReader(data))); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) parseINIScanner(scanner *bufio.Scanner) error {
	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' && line[len(line)-1] == ']' {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch currentSection {
		case "Network":
			c.parseNetworkSection(key, value)
		case "Reader":
			c.parseReaderSection(key, value)
		case "Freewheel":
			c.parseFreewheelSection(key, value)
		case "Heartbeat":
			c.parseHeartbeatSection(key, value)
		case "Relay":
			c.parseRelaySection(key, value)
		case "Journal":
			c.parseJournalSection(key, value)
		case "Metrics":
			c.parseMetricsSection(key, value)
		case "Log":
			c.parseLogSection(key, value)
		}
	}

	return scanner.Err()
}

func (c *Config) parseNetworkSection(key, value string) {
	switch key {
	case "Address":
		c.address = value
	case "Port":
		setUint(&c.port, value)
	}
}

func (c *Config) parseReaderSection(key, value string) {
	switch key {
	case "MTCOnly":
		c.mtcOnly = parseBool(value)
	case "AutoFramerate":
		c.autoFramerate = parseBool(value)
	case "Framerate":
		setUint(&c.framerate, value)
	}
}

func (c *Config) parseFreewheelSection(key, value string) {
	switch key {
	case "Enable":
		c.freewheelEnabled = parseBool(value)
	case "Tolerance":
		setUint(&c.freewheelTolerance, value)
	case "Frames":
		setUint(&c.freewheelFrames, value)
	}
}

func (c *Config) parseHeartbeatSection(key, value string) {
	switch key {
	case "Enable":
		c.heartbeatEnabled = parseBool(value)
	case "Interval":
		setUint(&c.heartbeatInterval, value)
	}
}

func (c *Config) parseRelaySection(key, value string) {
	switch key {
	case "Enable":
		c.relayEnabled = parseBool(value)
	case "Address":
		c.relayAddress = value
	case "Port":
		setUint(&c.relayPort, value)
	}
}

func (c *Config) parseJournalSection(key, value string) {
	switch key {
	case "Enable":
		c.journalEnabled = parseBool(value)
	case "Path":
		c.journalPath = value
	case "BatchSize":
		setUint(&c.journalBatchSize, value)
	case "FlushInterval":
		setUint(&c.journalFlushInterval, value)
	case "Retention":
		setUint(&c.journalRetention, value)
	}
}

func (c *Config) parseMetricsSection(key, value string) {
	switch key {
	case "Enable":
		c.metricsEnabled = parseBool(value)
	case "Address":
		c.metricsAddress = value
	}
}

func (c *Config) parseLogSection(key, value string) {
	switch key {
	case "Debug":
		c.logDebug = parseBool(value)
	case "FilePath":
		c.logFilePath = value
	}
}

// setUint stores a positive value; zero and unparsable values keep the default
func setUint(dst *uint32, value string) {
	if v, err := strconv.ParseUint(value, 10, 32); err == nil && v > 0 {
		*dst = uint32(v)
	}
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.address != "" && net.ParseIP(c.address) == nil {
		return fmt.Errorf("network: invalid address %q", c.address)
	}
	if c.port > 65535 {
		return fmt.Errorf("network: port must be between 1 and 65535, got %d", c.port)
	}

	switch c.framerate {
	case 24, 25, 29, 30:
	default:
		return fmt.Errorf("reader: framerate must be 24, 25, 29 or 30, got %d", c.framerate)
	}

	if c.relayEnabled {
		if c.relayAddress == "" {
			return fmt.Errorf("relay: address cannot be empty when relay is enabled")
		}
		if c.relayPort > 65535 {
			return fmt.Errorf("relay: port must be between 1 and 65535, got %d", c.relayPort)
		}
	}

	if c.journalEnabled && c.journalPath == "" {
		return fmt.Errorf("journal: path cannot be empty when journal is enabled")
	}

	if c.metricsEnabled && c.metricsAddress == "" {
		return fmt.Errorf("metrics: address cannot be empty when metrics are enabled")
	}

	return nil
}

// Network section getters
func (c *Config) GetAddress() string { return c.address }
func (c *Config) GetPort() uint32    { return c.port }

// Reader section getters
func (c *Config) GetMTCOnly() bool       { return c.mtcOnly }
func (c *Config) GetAutoFramerate() bool { return c.autoFramerate }
func (c *Config) GetFramerate() uint32   { return c.framerate }

// Freewheel section getters
func (c *Config) GetFreewheelEnabled() bool     { return c.freewheelEnabled }
func (c *Config) GetFreewheelTolerance() uint32 { return c.freewheelTolerance }
func (c *Config) GetFreewheelFrames() uint32    { return c.freewheelFrames }

// Heartbeat section getters
func (c *Config) GetHeartbeatEnabled() bool    { return c.heartbeatEnabled }
func (c *Config) GetHeartbeatInterval() uint32 { return c.heartbeatInterval }

// Relay section getters
func (c *Config) GetRelayEnabled() bool   { return c.relayEnabled }
func (c *Config) GetRelayAddress() string { return c.relayAddress }
func (c *Config) GetRelayPort() uint32    { return c.relayPort }

// Journal section getters
func (c *Config) GetJournalEnabled() bool         { return c.journalEnabled }
func (c *Config) GetJournalPath() string          { return c.journalPath }
func (c *Config) GetJournalBatchSize() uint32     { return c.journalBatchSize }
func (c *Config) GetJournalFlushInterval() uint32 { return c.journalFlushInterval }
func (c *Config) GetJournalRetention() uint32     { return c.journalRetention }

// Metrics section getters
func (c *Config) GetMetricsEnabled() bool   { return c.metricsEnabled }
func (c *Config) GetMetricsAddress() string { return c.metricsAddress }

// Log section getters
func (c *Config) GetLogDebug() bool      { return c.logDebug }
func (c *Config) GetLogFilePath() string { return c.logFilePath }

// SetPort overrides the listen port, e.g. from a command-line flag
func (c *Config) SetPort(port uint32) error {
	if port == 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.port = port
	return nil
}

// SetAddress overrides the listen address
func (c *Config) SetAddress(address string) error {
	if address != "" && net.ParseIP(address) == nil {
		return fmt.Errorf("invalid address %q", address)
	}
	c.address = address
	return nil
}

// SetLogDebug overrides the debug flag
func (c *Config) SetLogDebug(debug bool) {
	c.logDebug = debug
}
