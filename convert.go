/*
Copyright 2025 The Antfly Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package specaf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

// ToJSON converts a YAML specification to JSON. JSON input passes
// through unchanged, so callers can feed either format.
func ToJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml specification: %w", err)
	}
	out, err := sonic.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting specification to json: %w", err)
	}
	return out, nil
}

// specSource is a resettable specification byte stream. JSON files
// stream straight from disk; YAML sources are converted up front.
type specSource struct {
	reader io.Reader
	reset  func() error
	close  func() error
}

func (s *specSource) Read(p []byte) (int, error) { return s.reader.Read(p) }

func (s *specSource) Reset() error { return s.reset() }

func (s *specSource) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

func openSource(opts IngestOptions) (*specSource, error) {
	f, err := os.Open(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("opening specification: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("inspecting specification: %w", err)
	}
	if info.Size() > opts.MaxSpecBytes {
		f.Close()
		return nil, fmt.Errorf("specification is %d bytes, over the %d byte cap", info.Size(), opts.MaxSpecBytes)
	}

	ext := strings.ToLower(filepath.Ext(opts.Source))
	if ext == ".yaml" || ext == ".yml" {
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading specification: %w", err)
		}
		converted, err := ToJSON(data)
		if err != nil {
			return nil, err
		}
		br := bytes.NewReader(converted)
		return &specSource{
			reader: br,
			reset: func() error {
				_, err := br.Seek(0, io.SeekStart)
				return err
			},
		}, nil
	}

	return &specSource{
		reader: f,
		reset: func() error {
			_, err := f.Seek(0, io.SeekStart)
			return err
		},
		close: f.Close,
	}, nil
}
