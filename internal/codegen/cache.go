// Copyright (C) 2026 The Chic Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codegen

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/chic-lang/chic/internal/env"
)

// CacheEntry is the on-disk "<output>.cache.json" sidecar shape (spec.md
// 6.2), field-for-field.
type CacheEntry struct {
	Fingerprint     string `json:"fingerprint"`
	Backend         string `json:"backend"`
	CompilerVersion string `json:"compiler_version"`

	ObjectPath   string `json:"object_path"`
	ArtifactPath string `json:"artifact_path"`

	MetadataObject     string `json:"metadata_object,omitempty"`
	LibraryPack        string `json:"library_pack,omitempty"`
	ReflectionManifest string `json:"reflection_manifest,omitempty"`

	ConstantFolds    int      `json:"constant_folds"`
	InlinedFunctions []string `json:"inlined_functions"`

	LastBuilt int64 `json:"last_built"`
}

// cachePath is "<output>.cache.json" next to the requested output file.
func cachePath(output string) string {
	return output + ".cache.json"
}

// LoadCacheEntry reads the sidecar next to output, if present and
// well-formed. It never itself checks fingerprint/backend/identity/path
// freshness; call IsFresh on the result.
func LoadCacheEntry(output string) (*CacheEntry, bool) {
	data, err := os.ReadFile(cachePath(output))
	if err != nil {
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// IsFresh reports whether e is a valid cache hit for the given fingerprint,
// backend, and compiler identity, with every referenced path still present
// (spec.md 4.10 step 3, 6.2's "A cache hit requires every referenced path
// to exist").
func (e *CacheEntry) IsFresh(fingerprint string, backend Backend, identity CompilerIdentity, outputDir string) bool {
	if e == nil {
		return false
	}
	if env.DisableCodegenCache() {
		return false
	}
	if e.Fingerprint != fingerprint || e.Backend != backend.String() || e.CompilerVersion != identity.String() {
		return false
	}
	for _, rel := range []string{e.ObjectPath, e.ArtifactPath, e.MetadataObject, e.LibraryPack, e.ReflectionManifest} {
		if rel == "" {
			continue
		}
		if !pathExists(resolveRelative(outputDir, rel)) {
			return false
		}
	}
	return true
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// resolveRelative follows 6.2's "paths relative to the metadata file's
// directory where possible, absolute otherwise" rule.
func resolveRelative(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// SaveCacheEntry writes e to "<output>.cache.json" atomically: a temp file
// in the same directory followed by a rename (spec.md 5, concurrency
// boundary 2).
func SaveCacheEntry(output string, e CacheEntry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return codegenErrorf("serializing cache metadata for %s: %v", output, err)
	}

	dst := cachePath(output)
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return codegenErrorf("creating cache temp file in %s: %v", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return codegenErrorf("writing cache temp file %s: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return codegenErrorf("closing cache temp file %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return codegenErrorf("renaming cache temp file into place at %s: %v", dst, err)
	}
	return nil
}

// RelativizePath turns an absolute path into one relative to dir when
// possible, per 6.2's path-encoding rule; it falls back to the absolute
// path if the two are not under a common root.
func RelativizePath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || len(rel) >= 2 && rel[:2] == ".." {
		return path
	}
	return rel
}
