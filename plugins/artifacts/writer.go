// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifacts

import (
	"os"
	"path/filepath"

	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"
)

// DefaultTargetDir is the directory shared with the host where artifacts are written.
const DefaultTargetDir = "/target"

const (
	dirMode  = 0755
	fileMode = 0644
)

// Writer stores rendered artifacts under the target directory.
type Writer struct {
	Deps
}

// Deps lists dependencies of Writer.
type Deps struct {
	Log       logging.Logger
	TargetDir string
}

// NewWriter creates a new Writer with injected dependencies.
func NewWriter(f func(*Deps)) *Writer {
	w := &Writer{}
	w.TargetDir = DefaultTargetDir
	if f != nil {
		f(&w.Deps)
	}
	if w.Log == nil {
		w.Log = logging.ForPlugin("artifacts")
	}
	return w
}

// Write stores all files. Every file is replaced atomically: it is written
// into a temporary file in the same directory and renamed over the target.
func (w *Writer) Write(files []*File) error {
	for _, file := range files {
		target, err := w.targetPath(file.Path)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(target, file.Data); err != nil {
			return errors.Wrapf(err, "failed to write %s", target)
		}
		w.Log.Infof("Written %s", target)
	}
	return nil
}

func (w *Writer) targetPath(rel string) (string, error) {
	if filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", errors.Errorf("artifact path %q escapes the target directory", rel)
	}
	return filepath.Join(w.TargetDir, rel), nil
}

func writeFileAtomic(target string, data []byte) (err error) {
	dir := filepath.Dir(target)
	if err = os.MkdirAll(dir, dirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(fileMode); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
