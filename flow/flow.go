/*
 * flow.go, part of goaims.
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
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

//Ref is a handle to the output of a job, resolvable once that job has run.
//Makers wire jobs together by passing refs around instead of values, so the
//graph can be described before anything has been computed.
type Ref struct {
	UUID string `json:"uuid"`
}

//Response is what a job returns to the scheduler. Output is stored under
//the job's UUID. Addition, when non-nil, is a flow to append right after
//this job: this is how a running job grows the graph. StopChildren tells
//the scheduler not to run jobs that depend on this one.
type Response struct {
	Output       any
	Addition     *Flow
	StopChildren bool
}

//JobContext is what a running job gets from the scheduler: a private
//working directory, access to previously stored outputs, the cancellation
//context and a logger.
type JobContext struct {
	Ctx   context.Context
	Dir   string
	Log   *log.Entry
	store *store
}

//Resolve returns the stored output of a finished job.
func (jc *JobContext) Resolve(r Ref) (any, error) {
	v, ok := jc.store.get(r.UUID)
	if !ok {
		return nil, fmt.Errorf("flow: no output stored for job %s", r.UUID)
	}
	return v, nil
}

//JobFunc is the body of a job.
type JobFunc func(jc *JobContext) (*Response, error)

//Job is one node of the graph: a named closure with a unique id and the
//ids of the jobs whose outputs it consumes.
type Job struct {
	UUID    string
	Name    string
	Parents []string
	Func    JobFunc
}

//NewJob creates a job with a fresh UUID.
func NewJob(name string, fn JobFunc) *Job {
	return &Job{
		UUID: uuid.NewString(),
		Name: name,
		Func: fn,
	}
}

//After declares that the job consumes the output of the given jobs, and
//returns the job for chaining.
func (j *Job) After(parents ...*Job) *Job {
	for _, p := range parents {
		j.Parents = append(j.Parents, p.UUID)
	}
	return j
}

//OutputRef returns a handle to this job's (future) output.
func (j *Job) OutputRef() Ref {
	return Ref{UUID: j.UUID}
}

//Flow is an ordered collection of jobs with a designated output.
type Flow struct {
	Name   string
	Jobs   []*Job
	Output Ref
}

//NewFlow builds a flow whose overall output is the output of the job out.
func NewFlow(name string, out Ref, jobs ...*Job) *Flow {
	return &Flow{Name: name, Jobs: jobs, Output: out}
}
