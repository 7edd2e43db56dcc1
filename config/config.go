// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

// Package config extracts nameserver endpoints from resolv.conf style
// files. Only the nameserver directive is honored; everything else in the
// file is ignored.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/caffix/stringset"
)

// DefaultPath is the resolver configuration read by default on Unix.
const DefaultPath = "/etc/resolv.conf"

// DefaultPort is appended to nameserver addresses that lack one.
const DefaultPort = "53"

// Config is the parsed resolver configuration.
type Config struct {
	// Servers holds nameserver addresses in host:port form, in the
	// order they appeared in the file, duplicates removed.
	Servers []string
}

// EnsurePort appends the default DNS port to addresses that lack one.
func EnsurePort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	return addr
}

// Load reads and parses the resolver configuration at the provided path.
func Load(path string, logger *log.Logger) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the resolver configuration: %w", err)
	}
	defer f.Close()

	return Parse(f, logger)
}

// Parse extracts nameserver lines from the provided reader. Entries that
// do not parse as IP addresses are skipped with a logged warning rather
// than failing the whole file.
func Parse(r io.Reader, logger *log.Logger) (*Config, error) {
	cfg := &Config{}
	seen := stringset.New()
	defer seen.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}

		addr := fields[1]
		if net.ParseIP(addr) == nil {
			if logger != nil {
				logger.Printf("Skipping the malformed nameserver entry %q", addr)
			}
			continue
		}

		addr = net.JoinHostPort(addr, DefaultPort)
		if seen.Has(addr) {
			continue
		}
		seen.Insert(addr)
		cfg.Servers = append(cfg.Servers, addr)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse the resolver configuration: %w", err)
	}
	return cfg, nil
}

// Preferred returns the first IPv4 nameserver, falling back to the first
// entry of any family. The empty string means no usable server exists.
func (c *Config) Preferred() string {
	for _, addr := range c.Servers {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
				return addr
			}
		}
	}

	if len(c.Servers) > 0 {
		return c.Servers[0]
	}
	return ""
}
