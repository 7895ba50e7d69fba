/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	for path, contents := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(root+"/"+path), 0755))
		require.NoError(t, afero.WriteFile(fs, root+"/"+path, []byte(contents), 0644))
	}
}

func TestMake(t *testing.T) {
	fs := afero.NewMemMapFs()
	makeTree(t, fs, "/data", map[string]string{
		"a.txt":       "hello\n",
		"sub/b.txt":   "",
		"sub/c/d.bin": "xyz",
	})

	snap, err := Make(fs, "/data")
	require.NoError(t, err)
	assert.Equal(t, Version, snap.Version)
	assert.Equal(t, "/data", snap.Root)
	require.Len(t, snap.Manifest, 3)
	assert.Equal(t, FileMetadata{SHA1Digest: "f572d396fae9206628714fb2ce00f72e94f2258f", Size: 6}, snap.Manifest["a.txt"])
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", snap.Manifest["sub/b.txt"].SHA1Digest)
	assert.Contains(t, snap.Manifest, "sub/c/d.bin")
}

func TestWriteAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	makeTree(t, fs, "/data", map[string]string{"a.txt": "hello\n"})
	snap, err := Make(fs, "/data")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snap.Write(&buf))
	assert.Contains(t, buf.String(), `"sha1_digest": "f572d396fae9206628714fb2ce00f72e94f2258f"`)
	require.NoError(t, afero.WriteFile(fs, "/snap.json", buf.Bytes(), 0644))

	loaded, err := Load(fs, "/snap.json")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	require.NoError(t, afero.WriteFile(fs, "/old.json", []byte(`{"version": "1", "root": "/", "manifest": {}}`), 0644))
	_, err = Load(fs, "/old.json")
	assert.ErrorContains(t, err, "version")
}

func TestCompare(t *testing.T) {
	fs := afero.NewMemMapFs()
	makeTree(t, fs, "/src", map[string]string{"same": "1", "changed": "old", "only-src": "x"})
	makeTree(t, fs, "/dst", map[string]string{"same": "1", "changed": "new", "only-dst": "y"})

	s1, err := Make(fs, "/src")
	require.NoError(t, err)
	s2, err := Make(fs, "/dst")
	require.NoError(t, err)

	diffs := Compare(s1, s2)
	assert.Equal(t, []Difference{
		{Kind: OnlyInFirst, Path: "only-src"},
		{Kind: OnlyInSecond, Path: "only-dst"},
		{Kind: Differs, Path: "changed"},
	}, diffs)

	assert.Equal(t, []string{
		"In '/src' but not '/dst': only-src",
		"In '/dst' but not '/src': only-dst",
		"Files differ: changed",
	}, Describe(s1, s2, diffs))

	assert.Empty(t, Compare(s1, s1))
}

func TestDescribeSameRoot(t *testing.T) {
	s1 := &Snapshot{Root: "/data", Manifest: map[string]FileMetadata{"a": {Size: 1}}, Version: Version}
	s2 := &Snapshot{Root: "/data", Manifest: map[string]FileMetadata{}, Version: Version}
	assert.Equal(t, []string{"In '/data@1' but not '/data@2': a"}, Describe(s1, s2, Compare(s1, s2)))
}
