// Package geodb contains an optional file-based country lookup used by the
// server to classify keepalives whose payload carries no usable country.
package geodb

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/service"
	"github.com/oschwald/maxminddb-golang"
)

// Interface is the country lookup interface.
type Interface interface {
	// Country returns the ISO 3166-1 alpha-2 country code for addr, or an
	// empty string when the address is not in the database.
	Country(addr netip.Addr) (code string, err error)
}

// File is a file-based [Interface] implementation reading a MaxMind DB.
type File struct {
	logger *slog.Logger

	// mu protects reader against reopening during a refresh.
	mu     *sync.RWMutex
	reader *maxminddb.Reader

	path string
}

// FileConfig is the file-based country database configuration structure.
type FileConfig struct {
	// Logger is used for logging database refreshes.  It must not be nil.
	Logger *slog.Logger

	// Path is the path to the MMDB file containing country data.  It must not
	// be empty.
	Path string
}

// NewFile opens the database file and returns a new *File.
func NewFile(c *FileConfig) (f *File, err error) {
	reader, err := maxminddb.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip db %q: %w", c.Path, err)
	}

	return &File{
		logger: c.Logger,
		mu:     &sync.RWMutex{},
		reader: reader,
		path:   c.Path,
	}, nil
}

// type check
var _ Interface = (*File)(nil)

// countryRecord is the part of an MMDB record that we decode.
type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Country implements the [Interface] interface for *File.
func (f *File) Country(addr netip.Addr) (code string, err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var rec countryRecord
	err = f.reader.Lookup(addr.AsSlice(), &rec)
	if err != nil {
		return "", fmt.Errorf("geoip lookup for %s: %w", addr, err)
	}

	return rec.Country.ISOCode, nil
}

// type check
var _ service.Refresher = (*File)(nil)

// Refresh implements the [service.Refresher] interface for *File.  It reopens
// the database file, picking up replaced data.
func (f *File) Refresh(ctx context.Context) (err error) {
	reader, err := maxminddb.Open(f.path)
	if err != nil {
		return fmt.Errorf("reopening geoip db %q: %w", f.path, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	err = f.reader.Close()
	f.reader = reader

	if err != nil {
		return fmt.Errorf("closing previous geoip db: %w", err)
	}

	f.logger.InfoContext(ctx, "geoip db refreshed", "path", f.path)

	return nil
}

// Close closes the underlying reader.
func (f *File) Close() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return errors.Annotate(f.reader.Close(), "closing geoip db: %w")
}
