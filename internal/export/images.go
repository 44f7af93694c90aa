/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrBadImage is returned when an embedded image cannot be decoded.
var ErrBadImage = errors.New("malformed image data")

// embedded is a decoded data URL.
type embedded struct {
	Format string // png, jpeg or gif
	Data   []byte
	Config image.Config
}

// gofpdfType maps a decoded format onto the names gofpdf registers images by.
func (e embedded) gofpdfType() string {
	if e.Format == "jpeg" {
		return "jpg"
	}
	return e.Format
}

func (e embedded) ext() string {
	if e.Format == "jpeg" {
		return "jpg"
	}
	return e.Format
}

// decodeDataURL parses a data URL and sniffs the image it carries.
func decodeDataURL(s string) (embedded, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return embedded{}, fmt.Errorf("%w: not a data URL", ErrBadImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return embedded{}, fmt.Errorf("%w: missing payload", ErrBadImage)
	}
	var data []byte
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return embedded{}, fmt.Errorf("%w: %v", ErrBadImage, err)
		}
		data = b
	} else {
		p, err := url.PathUnescape(payload)
		if err != nil {
			return embedded{}, fmt.Errorf("%w: %v", ErrBadImage, err)
		}
		data = []byte(p)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return embedded{}, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return embedded{Format: format, Data: data, Config: cfg}, nil
}

// decodeImage fully decodes the pixels of a data URL.
func decodeImage(s string) (image.Image, error) {
	e, err := decodeDataURL(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(e.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return img, nil
}

// ImageDataURL reads an image file and returns it as a base64 data URL along
// with its natural pixel size.
func ImageDataURL(path string) (string, int, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read image: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrBadImage, err)
	}
	mt := mime.TypeByExtension("." + format)
	if mt == "" {
		mt = "image/" + format
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), cfg.Width, cfg.Height, nil
}
