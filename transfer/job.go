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
	"path"
	"strings"

	"github.com/htcondor/xfer/classads"
	"github.com/htcondor/xfer/condor"
	"github.com/htcondor/xfer/filecopy"
)

const metadataSuffix = ".metadata"

// JobOptions are the site settings folded into every transfer job.
type JobOptions struct {
	// Executable is the xfer binary shipped to the execute machine.
	Executable string
	// LogDir holds the job's user log, stdout and stderr.
	LogDir string
	// ExtraAttributes are added as custom job attributes, values verbatim.
	ExtraAttributes map[string]string
}

var remapEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `=`, `\=`)

func remap(from, to string) string {
	return remapEscaper.Replace(from) + " = " + remapEscaper.Replace(to)
}

// MetadataPath is where the metadata describing the transferred file lands
// on the submit side once the job completes.
func MetadataPath(req Request, opts JobOptions) string {
	if req.Mode == ModePush {
		return path.Join(logDir(opts), path.Base(req.Source)+metadataSuffix)
	}
	return req.Destination + metadataSuffix
}

func logDir(opts JobOptions) string {
	if opts.LogDir == "" {
		return "."
	}
	return opts.LogDir
}

// BuildJob maps a request to an HTCondor submit description.  The result
// depends only on its inputs.
func BuildJob(req Request, opts JobOptions) *condor.SubmitDescription {
	sd := condor.NewSubmitDescription()
	sd.Set("universe", "vanilla")
	sd.Set("executable", opts.Executable)
	sd.Set("transfer_executable", "true")
	sd.Set("should_transfer_files", "YES")
	sd.Set("when_to_transfer_output", "ON_EXIT")

	dir := logDir(opts)
	sd.Set("log", path.Join(dir, "xfer.log"))
	sd.Set("output", path.Join(dir, "xfer.$(Cluster).$(Process).out"))
	sd.Set("error", path.Join(dir, "xfer.$(Cluster).$(Process).err"))

	switch req.Mode {
	case ModePush:
		base := path.Base(req.Source)
		sd.Set("transfer_input_files", req.Source)
		sd.Set("arguments", condor.Arguments("exec", "--output", req.Destination, base))
		sd.Set("transfer_output_files", filecopy.MetadataFile)
		sd.Set("transfer_output_remaps", `"`+remap(filecopy.MetadataFile, MetadataPath(req, opts))+`"`)
	case ModePull, ModeSync:
		sd.Set("arguments", condor.Arguments("exec", req.Source))
		sd.Set("transfer_output_files", filecopy.DefaultOutput+", "+filecopy.MetadataFile)
		sd.Set("transfer_output_remaps", `"`+remap(filecopy.DefaultOutput, req.Destination)+"; "+
			remap(filecopy.MetadataFile, MetadataPath(req, opts))+`"`)
	}

	if req.HasRequirements() {
		sd.Set("requirements", req.Requirements)
	}

	sd.SetAttribute("XferMode", string(req.Mode))
	sd.SetAttribute("XferSource", req.Source)
	sd.SetAttribute("XferDestination", req.Destination)
	if req.Mode == ModeSync {
		sd.SetAttribute("XferVerify", true)
	}

	for name, value := range opts.ExtraAttributes {
		sd.SetAttribute(name, classads.Expr(value))
	}
	return sd
}
