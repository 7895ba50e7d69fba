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

package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htcondor/xfer/classads"
)

var testOptions = JobOptions{
	Executable: "/usr/bin/xfer",
	LogDir:     "/var/log/xfer",
}

func TestBuildJobPull(t *testing.T) {
	job := BuildJob(Request{Mode: ModePull, Source: "/a/b", Destination: "/c/d"}, testOptions)
	assert.Equal(t, `universe = vanilla
executable = /usr/bin/xfer
transfer_executable = true
should_transfer_files = YES
when_to_transfer_output = ON_EXIT
log = /var/log/xfer/xfer.log
output = /var/log/xfer/xfer.$(Cluster).$(Process).out
error = /var/log/xfer/xfer.$(Cluster).$(Process).err
arguments = "'exec' '/a/b'"
transfer_output_files = file0, metadata
transfer_output_remaps = "file0 = /c/d; metadata = /c/d.metadata"
+XferDestination = "/c/d"
+XferMode = "pull"
+XferSource = "/a/b"
queue
`, job.String())
}

func TestBuildJobPush(t *testing.T) {
	req := Request{Mode: ModePush, Source: "/data/run 1.tar", Destination: "/scratch/run.tar", Requirements: `UniqueName == "M1"`}
	job := BuildJob(req, testOptions)

	inputs, ok := job.Get("transfer_input_files")
	require.True(t, ok)
	assert.Equal(t, "/data/run 1.tar", inputs)

	args, _ := job.Get("arguments")
	assert.Equal(t, `"'exec' '--output' '/scratch/run.tar' 'run 1.tar'"`, args)

	outputs, _ := job.Get("transfer_output_files")
	assert.Equal(t, "metadata", outputs)
	remaps, _ := job.Get("transfer_output_remaps")
	assert.Equal(t, `"metadata = /var/log/xfer/run 1.tar.metadata"`, remaps)
	assert.Equal(t, "/var/log/xfer/run 1.tar.metadata", MetadataPath(req, testOptions))

	requirements, ok := job.Get("requirements")
	require.True(t, ok)
	assert.Equal(t, `UniqueName == "M1"`, requirements)

	_, ok = job.Attribute("XferVerify")
	assert.False(t, ok)
}

func TestBuildJobSync(t *testing.T) {
	req := Request{Mode: ModeSync, Source: "/x", Destination: "/y"}
	job := BuildJob(req, testOptions)

	verify, ok := job.Attribute("XferVerify")
	require.True(t, ok)
	assert.Equal(t, true, verify)
	mode, _ := job.Attribute("XferMode")
	assert.Equal(t, "sync", mode)

	// A sync moves data exactly like a pull.
	pull := BuildJob(Request{Mode: ModePull, Source: "/x", Destination: "/y"}, testOptions)
	assert.Equal(t, pull.Commands(), job.Commands())
	assert.Equal(t, "/y.metadata", MetadataPath(req, testOptions))
	assert.Contains(t, job.String(), "+XferVerify = true\n")
}

func TestBuildJobDeterministic(t *testing.T) {
	opts := JobOptions{
		Executable: "/usr/bin/xfer",
		ExtraAttributes: map[string]string{
			"ProjectName":     `"ops"`,
			"WantFlocking":    "true",
			"AccountingGroup": `"group_xfer.user"`,
			"JobPrio":         "10",
		},
	}
	for _, mode := range Modes {
		req := Request{Mode: mode, Source: "/a", Destination: "/b", Requirements: "Cpus > 1"}
		first := BuildJob(req, opts).String()
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, BuildJob(req, opts).String())
		}
	}
}

func TestBuildJobExtraAttributes(t *testing.T) {
	opts := JobOptions{ExtraAttributes: map[string]string{"ProjectName": `"ops"`}}
	job := BuildJob(Request{Mode: ModePull, Source: "/a", Destination: "/b"}, opts)
	value, ok := job.Attribute("ProjectName")
	require.True(t, ok)
	assert.Equal(t, classads.Expr(`"ops"`), value)
	assert.Contains(t, job.String(), "+ProjectName = \"ops\"\n")
	assert.Contains(t, job.String(), "log = xfer.log\n")
}

func TestBuildJobRemapEscaping(t *testing.T) {
	job := BuildJob(Request{Mode: ModePull, Source: "/a", Destination: "/out/a=b;c"}, testOptions)
	remaps, _ := job.Get("transfer_output_remaps")
	assert.Equal(t, `"file0 = /out/a\=b\;c; metadata = /out/a\=b\;c.metadata"`, remaps)
}
