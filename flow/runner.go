/*
 * runner.go, part of goaims.
 *
 * Copyright 2023 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 * Goaims is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.
 *
 */

package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//store keeps the outputs of finished jobs, keyed by job UUID. A convergence
//chain, or any other flow, is single-threaded from the runner's point of
//view, so no locking happens here; what travels between iterations are the
//persisted artifacts in the job directories.
type store struct {
	outputs map[string]any
}

func newStore() *store {
	return &store{outputs: make(map[string]any)}
}

func (s *store) put(uuid string, v any) {
	s.outputs[uuid] = v
}

func (s *store) get(uuid string) (any, bool) {
	v, ok := s.outputs[uuid]
	return v, ok
}

//RunOptions controls the local runner.
type RunOptions struct {
	//RootDir is where the per-job directories are created. Empty means the
	//current directory.
	RootDir string
	//CreateFolders gives every job its own numbered directory.
	CreateFolders bool
	//MaxJobs caps the total number of executed jobs. Dynamically appended
	//continuations grow the queue at run time; the cap turns a runaway
	//loop into an error instead of an endless campaign. Zero means the
	//default of 1000.
	MaxJobs int
}

//RunResult is what a finished (or stopped) local run reports.
type RunResult struct {
	//Responses, keyed by job UUID, for every executed job.
	Responses map[string]*Response
	//Order holds the UUIDs in execution order; the last entry is the job
	//that produced the final output of a dynamic chain.
	Order []string
	//Output is the stored output of the flow's designated output job, or of
	//the last executed job if the graph grew past the original flow.
	Output any
}

//RunLocally executes a flow sequentially in submission order, honoring
//dynamically appended additions, per-job directories and stop-children
//markers. It is the reference scheduler used in tests and for small local
//campaigns; production campaigns would hand the same jobs to an external
//workflow engine.
func RunLocally(ctx context.Context, fl *Flow, opts *RunOptions) (*RunResult, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	maxJobs := opts.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1000
	}
	root := opts.RootDir
	if root == "" {
		root = "."
	}
	st := newStore()
	result := &RunResult{Responses: make(map[string]*Response)}
	queue := make([]*Job, len(fl.Jobs))
	copy(queue, fl.Jobs)
	stopped := make(map[string]bool)
	ran := 0
	grew := false
	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, "flow: run canceled")
		}
		j := queue[i]
		if parentStopped(j, stopped) {
			log.Infof("Skipping job %q (%s): an ancestor asked to stop its children", j.Name, j.UUID)
			stopped[j.UUID] = true
			continue
		}
		if ran >= maxJobs {
			return result, fmt.Errorf("flow: more than %d jobs executed, giving up on %q", maxJobs, fl.Name)
		}
		dir := root
		if opts.CreateFolders {
			dir = filepath.Join(root, fmt.Sprintf("job_%03d_%s", ran, pathSafe(j.Name)))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return result, errors.Wrapf(err, "flow: creating directory for job %q", j.Name)
			}
		}
		jc := &JobContext{
			Ctx:   ctx,
			Dir:   dir,
			Log:   log.WithFields(log.Fields{"job": j.Name, "uuid": j.UUID}),
			store: st,
		}
		jc.Log.Info("Starting job")
		resp, err := j.Func(jc)
		if err != nil {
			return result, errors.Wrapf(err, "flow: job %q (%s) failed", j.Name, j.UUID)
		}
		if resp == nil {
			resp = &Response{}
		}
		st.put(j.UUID, resp.Output)
		writeJobOutput(dir, j, resp.Output)
		result.Responses[j.UUID] = resp
		result.Order = append(result.Order, j.UUID)
		ran++
		if resp.StopChildren {
			jc.Log.Info("Job asked to stop its children")
			stopped[j.UUID] = true
		}
		if resp.Addition != nil {
			jc.Log.Infof("Appending %d jobs after this one", len(resp.Addition.Jobs))
			grew = true
			rest := make([]*Job, 0, len(queue)-i-1+len(resp.Addition.Jobs))
			rest = append(rest, resp.Addition.Jobs...)
			rest = append(rest, queue[i+1:]...)
			queue = append(queue[:i+1], rest...)
		}
	}
	if out, ok := st.get(fl.Output.UUID); ok && !grew {
		result.Output = out
	} else if len(result.Order) > 0 {
		//the graph grew at run time: the designated output job, declared
		//before the run, only holds an intermediate result. The terminal
		//output belongs to the last appended job.
		result.Output, _ = st.get(result.Order[len(result.Order)-1])
	}
	return result, nil
}

//parentStopped reports whether any ancestor of j was stopped or skipped.
func parentStopped(j *Job, stopped map[string]bool) bool {
	for _, p := range j.Parents {
		if stopped[p] {
			return true
		}
	}
	return false
}

//writeJobOutput persists a job's output as JSON next to its other
//artifacts. Failures are only logged: the authoritative copy lives in the
//store, this one is for humans poking at the directory.
func writeJobOutput(dir string, j *Job, output any) {
	if output == nil {
		return
	}
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Debugf("Not persisting output of job %q: %v", j.Name, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "job_output.json"), data, 0644); err != nil {
		log.Debugf("Not persisting output of job %q: %v", j.Name, err)
	}
}

//pathSafe makes a job name usable as a directory component.
func pathSafe(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return strings.Trim(name, "_")
}
