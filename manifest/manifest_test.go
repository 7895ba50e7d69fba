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

package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamelToUpperSnake(t *testing.T) {
	testCases := map[string]string{
		"CamelCase":   "CAMEL_CASE",
		"AlTeRnAtInG": "AL_TE_RN_AT_IN_G",
		"foobar":      "FOOBAR",
		"FOOBAR":      "FOOBAR",
		"fooBar":      "FOO_BAR",
		"DAGMan":      "DAG_MAN",
		"twoGroups":   "TWO_GROUPS",
	}
	for input, expected := range testCases {
		assert.Equal(t, expected, CamelToUpperSnake(input), input)
	}
}

func TestRoundTripEntries(t *testing.T) {
	for _, name := range []string{"foobar", "i have spaces"} {
		for _, timestamp := range []float64{1234, 1234.5678} {
			entries := []Entry{
				&TransferRequest{Name: name, Size: 123},
				&VerifyRequest{Name: name, Size: 123},
				&TransferComplete{Name: name, Size: 123, Digest: "abcd", Timestamp: timestamp},
				&SyncRequest{
					Direction:       Pull,
					Timestamp:       1234,
					BytesToVerify:   10,
					FilesToVerify:   10,
					RemotePrefix:    "/a/path",
					BytesToTransfer: 10,
					FilesToTransfer: 10,
					FilesAtSource:   10,
				},
				&SyncDone{Timestamp: timestamp},
				&File{Name: name, Size: 123},
				&Metadata{Name: name, Size: 123, Digest: "abcd"},
			}

			path := filepath.Join(t.TempDir(), "tmp")
			require.NoError(t, Append(path, entries...))

			lines, err := ReadFile(path)
			require.NoError(t, err)
			read := make([]Entry, 0, len(lines))
			for _, line := range lines {
				read = append(read, line.Entry)
			}
			assert.Equal(t, entries, read)
		}
	}
}

func TestEntryKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &TransferComplete{Name: "a", Size: 1, Digest: "d", Timestamp: 2}))
	assert.Equal(t, `TRANSFER_COMPLETE {"name":"a","size":1,"digest":"d","timestamp":2}`+"\n", buf.String())
	assert.Equal(t, "SYNC_DONE", EntryType(&SyncDone{}))
	assert.Equal(t, "METADATA", EntryType(&Metadata{}))
}

func TestCommentsAndBlankLinesAreIgnored(t *testing.T) {
	text := `
    FILE {"name": "foobar", "size": 123}
    # I am a comment

    FILE {"name": "foobar", "size": 123}

    `
	lines, err := Read(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Number)
	assert.Equal(t, &File{Name: "foobar", Size: 123}, lines[1].Entry)
}

func TestMalformedEntries(t *testing.T) {
	_, err := Read(strings.NewReader(`BOGUS {"name": "a"}`))
	assert.ErrorContains(t, err, "unknown manifest entry type")

	_, err = Read(strings.NewReader(`FILE {"name": `))
	assert.ErrorContains(t, err, "line 1")

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
