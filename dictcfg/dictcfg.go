// Package dictcfg loads dictload.Options (and the loader's search root and
// log level) from an INI-style config file, the way the teacher's
// ingest/config package loads ingester configuration: gcfg.ReadStringInto
// against a file read fully into memory with a size cap.
package dictcfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gravwell/gcfg"

	"github.com/gravwell/raddict/dictlog"
	"github.com/gravwell/raddict/dictload"
)

const maxConfigSize int64 = 1024 * 1024 // 1MB; a dictionary loader config has no business being bigger

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire config file")
)

// Global is the [Global] section of a loader config file.
type Global struct {
	Search_Root          string
	Allow_World_Writable bool
	Strict_Line_Length   bool
	Log_Level            string
}

// cfgType mirrors the teacher's pattern of an anonymous embedded section
// plus named sub-sections (fileFollow/config.go's global/Follower split),
// scaled down to the one section a loader needs.
type cfgType struct {
	Global Global
}

// Config is the parsed, validated form handed to callers.
type Config struct {
	SearchRoot string
	Options    dictload.Options
	LogLevel   dictlog.Level
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()
	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}
	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return nil, err
	}
	if n != fi.Size() {
		return nil, ErrFailedFileRead
	}
	return Parse(bb.Bytes())
}

// Parse parses config file contents already read into memory.
func Parse(b []byte) (*Config, error) {
	var cr cfgType
	if err := gcfg.ReadStringInto(&cr, string(b)); err != nil {
		return nil, fmt.Errorf("dictcfg: %w", err)
	}
	lvl := dictlog.OFF
	if cr.Global.Log_Level != "" {
		var err error
		lvl, err = dictlog.LevelFromString(cr.Global.Log_Level)
		if err != nil {
			return nil, fmt.Errorf("dictcfg: %w", err)
		}
	}
	return &Config{
		SearchRoot: cr.Global.Search_Root,
		Options: dictload.Options{
			AllowWorldWritable: cr.Global.Allow_World_Writable,
			StrictLineLength:   cr.Global.Strict_Line_Length,
		},
		LogLevel: lvl,
	}, nil
}
